// Command decision-plot renders the decision timeline of a recorded
// session to a PNG: published and raw stop waypoints, and raw versus
// confirmed light colour, per frame.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/banshee-data/tldetector/internal/db"
	"github.com/banshee-data/tldetector/internal/security"
)

func main() {
	dbPath := flag.String("db", "tldetector.db", "SQLite decision log")
	sessionID := flag.String("session", "", "Session ID to plot (defaults to the most recent)")
	out := flag.String("out", "", "Output PNG path (defaults to decisions-<session>.png)")
	limit := flag.Int("limit", 0, "Plot at most this many decisions (0 = all)")
	flag.Parse()

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	session, err := resolveSession(ctx, database, *sessionID)
	if err != nil {
		log.Fatalf("Failed to find session: %v", err)
	}
	decisions, err := database.Decisions(ctx, session.ID, *limit)
	if err != nil {
		log.Fatalf("Failed to load decisions: %v", err)
	}
	path := *out
	if path == "" {
		path = "decisions-" + security.SanitizeFilename(session.ID) + ".png"
	}
	if err := security.ValidateExportPath(path); err != nil {
		log.Fatalf("Refusing to write plot: %v", err)
	}
	if err := renderTimeline(session, decisions, path); err != nil {
		log.Fatalf("Failed to render plot: %v", err)
	}
	log.Printf("Wrote %d decisions from session %s to %s", len(decisions), session.ID, path)
}

func resolveSession(ctx context.Context, database *db.DB, id string) (*db.Session, error) {
	if id != "" {
		return database.GetSession(ctx, id)
	}
	sessions, err := database.ListSessions(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, db.ErrSessionNotFound
	}
	return &sessions[0], nil
}
