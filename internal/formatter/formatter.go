// package formatter exports shopping lists to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat accepts the short names and a few common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// ExportToCSV converts a list to CSV with columns: ID, Name, Quantity, Description, Completed
func ExportToCSV(list models.ShoppingList) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Quantity", "Description", "Completed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range list.Items {
		record := []string{
			strconv.FormatInt(item.ID, 10),
			item.Name,
			item.Quantity,
			item.Description,
			strconv.FormatBool(item.Completed),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a list to a Markdown task list
func ExportToMarkdown(list models.ShoppingList) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", list.Name)
	if list.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", list.Description)
	}
	fmt.Fprintf(&buf, "**Remaining**: %d of %d\n", list.Remaining(), len(list.Items))

	if len(list.Members) > 0 {
		names := make([]string, len(list.Members))
		for i, m := range list.Members {
			names[i] = m.DisplayName()
		}
		fmt.Fprintf(&buf, "**Shared with**: %s\n", strings.Join(names, ", "))
	}

	buf.WriteString("\n## Items\n\n")
	for _, item := range list.Items {
		check := " "
		if item.Completed {
			check = "x"
		}
		fmt.Fprintf(&buf, "- [%s] %s%s\n", check, item.Name, quantity(item))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a list to plain text
func ExportToText(list models.ShoppingList) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "List: %s\n", list.Name)
	if list.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", list.Description)
	}
	fmt.Fprintf(&buf, "Items: %d (%d remaining)\n\n", len(list.Items), list.Remaining())

	for i, item := range list.Items {
		mark := " "
		if item.Completed {
			mark = "✓"
		}
		fmt.Fprintf(&buf, "%d. [%s] %s%s\n", i+1, mark, item.Name, quantity(item))
	}

	return buf.Bytes(), nil
}

func quantity(item models.Item) string {
	if item.Quantity == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", item.Quantity)
}

// Export renders list in format.
func Export(list models.ShoppingList, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(list)
	case FormatMarkdown:
		return ExportToMarkdown(list)
	case FormatText:
		return ExportToText(list)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport writes list to path in format.
//
// Defaults to list_{id}.{format} as the filename.
func WriteExport(list models.ShoppingList, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("list_%d.%s", list.ID, format)
	}

	data, err := Export(list, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
