package audit

import (
	"context"

	"github.com/assistdeck/gateway/supabase/client"
)

// Table names in the Supabase project.
const (
	activityTable = "activity_log"
	callLogTable  = "call_log"
)

// SupabaseStore persists audit records to the platform's Supabase
// project via PostgREST.
type SupabaseStore struct {
	client *client.Client
}

// NewSupabaseStore creates a Supabase-backed audit store.
func NewSupabaseStore(c *client.Client) *SupabaseStore {
	return &SupabaseStore{client: c}
}

// WriteActivity inserts an activity entry row.
func (s *SupabaseStore) WriteActivity(ctx context.Context, entry Entry) error {
	return s.client.From(activityTable).Insert(ctx, entry)
}

// WriteCallLog inserts a call-log row.
func (s *SupabaseStore) WriteCallLog(ctx context.Context, record CallRecord) error {
	return s.client.From(callLogTable).Insert(ctx, record)
}

// Health checks connectivity to the audit store.
func (s *SupabaseStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}
