package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/basket/internal/realtime"
	"github.com/desertthunder/basket/internal/view"
)

// Watch opens the active list and prints every change until interrupted, the list goes away, or the connection
// fails for good.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals, unsubscribe := session.Bus().Subscribe(128)
	defer unsubscribe()
	defer session.Connection().Disconnect()

	go session.Run(ctx)

	if err := session.Refresh(ctx); err != nil {
		return err
	}
	if id := cmd.Int64("list"); id > 0 && id != session.View().SelectedID() {
		if err := session.Open(ctx, id); err != nil {
			return err
		}
	}

	list, ok := session.View().Selected()
	if !ok {
		return r.writePlain("No list to watch. Create one with 'basket lists create <name>'.\n")
	}
	r.writePlain("Watching %s as %s (Ctrl+C to stop)\n", list.Name, session.User().DisplayName())

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			done, err := r.printSignal(session, sig)
			if done || err != nil {
				return err
			}
		}
	}
}

// printSignal writes one line per signal. It reports done once the list is gone or the connection has given
// up, along with the terminal connection error.
func (r *Runner) printSignal(session *view.Session, sig realtime.Signal) (bool, error) {
	stamp := time.Now().Format(time.TimeOnly)

	switch s := sig.(type) {
	case realtime.StatusChanged:
		if s.Err != nil {
			r.writePlain("%s  connection %s: %v\n", stamp, s.Status, s.Err)
		} else {
			r.writePlain("%s  connection %s\n", stamp, s.Status)
		}
		if s.Status.Terminal() {
			return true, s.Err
		}
	case realtime.Notification:
		r.writePlain("%s  [%s] %s: %s\n", stamp, s.Level, s.Title, s.Message)
	case realtime.Navigate:
		r.writePlain("%s  left the list: %s\n", stamp, s.Reason)
		return true, nil
	case realtime.StateChanged:
		if list, ok := session.View().List(s.ListID); ok && s.ListID == session.View().SelectedID() {
			r.logger.Debug("list changed", "list_id", s.ListID, "remaining", list.Remaining(), "items", len(list.Items))
		}
	}
	return false, nil
}
