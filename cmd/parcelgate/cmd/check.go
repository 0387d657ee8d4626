package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	celeval "github.com/parcelgate/parcelgate/internal/adapter/outbound/cel"
	"github.com/parcelgate/parcelgate/internal/adapter/outbound/memory"
	"github.com/parcelgate/parcelgate/internal/config"
	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/document"
	"github.com/parcelgate/parcelgate/internal/domain/principal"
	"github.com/parcelgate/parcelgate/internal/domain/rules"
	"github.com/parcelgate/parcelgate/internal/domain/upload"
	"github.com/parcelgate/parcelgate/internal/service"
)

// checkRequest is the file format accepted by the check command.
// Kind selects between a document-store and an object-store request.
type checkRequest struct {
	Kind       string            `yaml:"kind"`
	Operation  string            `yaml:"operation"`
	Subject    string            `yaml:"subject"`
	Collection string            `yaml:"collection"`
	DocumentID string            `yaml:"document_id"`
	Existing   document.Document `yaml:"existing"`
	Proposed   document.Document `yaml:"proposed"`

	// Object-store fields, used when kind is "storage".
	Path        string `yaml:"path"`
	ContentType string `yaml:"content_type"`
	Size        int64  `yaml:"size"`
}

var checkSeedFile string

var checkCmd = &cobra.Command{
	Use:   "check <request.yaml>",
	Short: "Evaluate one request from a file and exit 0 (allow) or 1 (deny)",
	Long: `Evaluates a single access request described in a YAML file against
the rule tables and any overlays in the loaded config, then exits with
code 0 on allow and 1 on deny.

The decision, including the matched rule and reason, is printed as JSON.
Use --seed to load user profiles and documents into the in-memory store
before evaluating, for example to resolve the subject's role:

  users:
    agent-1: {role: agent}
  properties:
    prop-1: {ownerId: agent-1, title: Cottage}

If the request omits "existing" and the seed contains a document at the
target path, that document is used as the existing state.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkSeedFile, "seed", "", "YAML file of documents to load before evaluating")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	req, err := readCheckRequest(args[0])
	if err != nil {
		return err
	}

	store := memory.NewDocumentStore()
	if checkSeedFile != "" {
		if err := seedStore(store, checkSeedFile); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	resolver := principal.NewDirectoryResolver(store, logger)

	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to build overlay environment: %w", err)
	}
	overlayRules := make([]service.OverlayRule, 0, len(cfg.Overlays))
	for _, o := range cfg.Overlays {
		overlayRules = append(overlayRules, service.OverlayRule{Name: o.Name, Condition: o.Condition})
	}
	overlays, err := service.CompileOverlays(evaluator, overlayRules)
	if err != nil {
		return err
	}

	engine := service.NewDecisionService(
		rules.NewTable(resolver),
		upload.NewTable(resolver),
		resolver,
		evaluator,
		overlays,
		nil,
		logger,
	)

	ctx := context.Background()
	var decision access.Decision
	switch req.Kind {
	case "", "document":
		docReq := access.Request{
			Operation:  access.Operation(req.Operation),
			Collection: req.Collection,
			DocumentID: req.DocumentID,
			Subject:    req.Subject,
			Existing:   req.Existing,
			Proposed:   req.Proposed,
		}
		if docReq.Existing == nil {
			if doc, err := store.Get(ctx, req.Collection, req.DocumentID); err == nil {
				docReq.Existing = doc
			}
		}
		decision = engine.EvaluateDocument(ctx, docReq)
	case "storage":
		decision = engine.EvaluateStorage(ctx, access.StorageRequest{
			Operation:   access.Operation(req.Operation),
			Path:        req.Path,
			Subject:     req.Subject,
			ContentType: req.ContentType,
			Size:        req.Size,
		})
	default:
		return fmt.Errorf("unknown request kind %q (want document or storage)", req.Kind)
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !decision.Allowed {
		os.Exit(1)
	}
	return nil
}

func readCheckRequest(path string) (*checkRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	var req checkRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request file: %w", err)
	}
	return &req, nil
}

// seedStore loads a two-level map of collection -> id -> document into
// the store.
func seedStore(store *memory.DocumentStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var collections map[string]map[string]document.Document
	if err := yaml.Unmarshal(data, &collections); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	for collection, docs := range collections {
		for id, doc := range docs {
			store.Seed(collection, id, doc)
		}
	}
	return nil
}
