// Command docguard-demo exercises the validation layer end to end
// against the in-memory backend: defaults, uniqueness constraints,
// protected columns and a user validator.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/strata-labs/docguard/pkg/docguard"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	config := docguard.DefaultConfig()
	config.Storage.Type = "memory"
	config.Events.QueueType = "memory"

	// To run against Redis instead:
	// config.Storage.Type = "redis"
	// config.Storage.Redis.Endpoints = []string{"localhost:6379"}

	client, err := docguard.NewClient(config, docguard.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	schema := &docguard.Schema{
		TableName: "users",
		Columns: []docguard.Column{
			{Name: "email", Type: "string"},
			{Name: "org", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "status", Type: "string", Nullable: true},
		},
		Indexes: []docguard.Index{
			{Name: "by_email", Fields: []string{"email"}},
			{Name: "by_org_name", Fields: []string{"org", "name"}},
		},
	}

	normalizeEmail := docguard.NewValidator("normalize-email", nil, docguard.Hooks{
		OnInsert: func(ctx context.Context, vctx *docguard.ValidateContext, doc docguard.Document) (docguard.Document, error) {
			if email, ok := doc["email"].(string); ok {
				doc["email"] = strings.ToLower(email)
			}
			return doc, nil
		},
	})

	users, err := client.Bind(ctx, "users",
		docguard.WithSchema(schema),
		docguard.WithUniqueColumns(docguard.ConstraintRef{Index: "by_email"}),
		docguard.WithUniqueRows(docguard.ConstraintRef{Index: "by_org_name"}),
		docguard.WithDefaults(docguard.Document{"status": "active"}),
		docguard.WithProtectedColumns("email"),
		docguard.WithValidator(normalizeEmail),
	)
	if err != nil {
		log.Fatalf("failed to bind users table: %v", err)
	}

	if err := client.Start(ctx); err != nil {
		log.Fatalf("failed to start client: %v", err)
	}
	defer client.Stop()

	id, err := users.Insert(ctx, docguard.Document{
		"email": "Ada@Example.com",
		"org":   "acme",
		"name":  "ada",
	})
	if err != nil {
		log.Fatalf("insert failed: %v", err)
	}
	doc, _ := users.Get(ctx, id)
	fmt.Printf("inserted %s: %v\n", id, doc)

	// Same email, different case: rejected by the unique-column
	// constraint after the normalizer lowercases it.
	_, err = users.Insert(ctx, docguard.Document{
		"email": "ADA@example.com",
		"org":   "acme",
		"name":  "ada2",
	}, docguard.WithOnFail(func(result docguard.ConflictResult) {
		fmt.Printf("conflict on %v with document %s\n", result.Fields, result.Existing.ID())
	}))
	fmt.Printf("duplicate email: %v (unique column: %v)\n",
		err, errors.Is(err, docguard.ErrUniqueColumnConflict))

	// Email is a protected column.
	err = users.Patch(ctx, id, docguard.Document{"email": "other@example.com"})
	fmt.Printf("patch protected column: %v\n", err)

	// PatchUnrestricted bypasses only the protection, not validation.
	if err := users.PatchUnrestricted(ctx, id, docguard.Document{"email": "other@example.com"}); err != nil {
		log.Fatalf("unrestricted patch failed: %v", err)
	}
	doc, _ = users.Get(ctx, id)
	fmt.Printf("after unrestricted patch: %v\n", doc)

	// Give the event channel a beat before shutdown.
	time.Sleep(100 * time.Millisecond)
}
