package trust

import (
	"context"
	"fmt"

	"github.com/assistdeck/gateway/supabase/client"
)

// sourcesTable is the registry table in the Supabase project.
const sourcesTable = "trusted_sources"

type sourceRow struct {
	Name           string `json:"name"`
	CredentialKind string `json:"credential_kind"`
	Tier           string `json:"tier"`
	Enabled        bool   `json:"enabled"`
}

// LoadSources fetches the registered sources from the Supabase project.
// Disabled rows are skipped. The result feeds NewRegistry at startup;
// the registry is never reloaded while serving.
func LoadSources(ctx context.Context, c *client.Client) ([]Source, error) {
	var rows []sourceRow
	err := c.From(sourcesTable).
		Select("name,credential_kind,tier,enabled").
		Eq("enabled", true).
		Order("name", true).
		Execute(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load trusted sources: %w", err)
	}

	sources := make([]Source, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, Source{
			Name:           row.Name,
			CredentialKind: row.CredentialKind,
			Tier:           Tier(row.Tier),
		})
	}
	return sources, nil
}
