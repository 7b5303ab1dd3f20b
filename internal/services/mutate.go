package services

import (
	"context"
	"time"
)

// mutation is one write against the API together with its echo bookkeeping.
type mutation struct {
	method string
	path   string
	body   any
	result any

	// track lists tracker keys recorded before the call, for writes whose entity id is already known.
	track []string
	// create arms the ignore-next-create flag before the call.
	create bool
	// created returns the tracker key for the entity the call created, read after a successful response.
	created func() string
}

// mutate is the only path for writes: it records the write with the tracker, tags the request and issues it.
//
// When the call fails nothing will be echoed, so the bookkeeping is rolled back.
func (c *Client) mutate(ctx context.Context, m mutation) error {
	if c.tracker != nil {
		if m.create {
			c.tracker.IgnoreNextCreate()
		}
		for _, key := range m.track {
			c.tracker.Track(key)
		}
	}

	start := time.Now()
	err := c.doRequest(ctx, m.method, m.path, m.body, m.result)
	c.monitor.RequestDone(time.Since(start), err)

	if c.tracker == nil {
		return err
	}

	if err != nil {
		if m.create {
			c.tracker.ShouldIgnoreCreate()
		}
		for _, key := range m.track {
			c.tracker.Consume(key)
		}
		return err
	}

	if m.created != nil {
		if key := m.created(); key != "" {
			c.tracker.Track(key)
		}
	}
	return nil
}
