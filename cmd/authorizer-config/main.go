package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/authorizer"
	"github.com/oarkflow/authorizer/logger"
	"github.com/oarkflow/authorizer/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "seed":
		handleSeed()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("authorizer-config - Seed file tool for the authorizer")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  authorizer-config validate <file>               - Validate a seed file")
	fmt.Println("  authorizer-config convert <input> <output>      - Convert between yaml and json")
	fmt.Println("  authorizer-config stats <file>                  - Show seed file statistics")
	fmt.Println("  authorizer-config seed <file> <db> <org>        - Seed an organization into a sqlite db")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func loadConfig(path string) (*authorizer.Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return authorizer.LoadConfigYAML(path)
	case ".json":
		return authorizer.LoadConfigJSON(path)
	}
	return nil, fmt.Errorf("unsupported format: %s", path)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authorizer-config validate <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fatal("load config", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("validate", err)
	}
	fmt.Println("OK")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: authorizer-config convert <input> <output>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fatal("load config", err)
	}
	out := os.Args[3]
	var data []byte
	switch strings.ToLower(filepath.Ext(out)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		fatal("convert", fmt.Errorf("unsupported output format: %s", out))
	}
	if err != nil {
		fatal("encode", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fatal("write", err)
	}
	fmt.Printf("Wrote %s\n", out)
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authorizer-config stats <file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fatal("load config", err)
	}
	perms, conds := 0, 0
	for _, r := range cfg.Roles {
		perms += len(r.Grants) + len(r.Permissions)
		for _, p := range r.Permissions {
			conds += len(p.Conditions)
		}
	}
	for _, p := range cfg.Policies {
		conds += len(p.Conditions)
	}
	fmt.Printf("Version:     %d\n", cfg.Version)
	fmt.Printf("Roles:       %d\n", len(cfg.Roles))
	fmt.Printf("Permissions: %d\n", perms)
	fmt.Printf("Policies:    %d\n", len(cfg.Policies))
	fmt.Printf("Conditions:  %d\n", conds)
}

func handleSeed() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: authorizer-config seed <file> <db> <org>")
		os.Exit(1)
	}
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fatal("load config", err)
	}

	sqlDB, err := sql.Open("sqlite", os.Args[3])
	if err != nil {
		fatal("open db", err)
	}
	defer sqlDB.Close()
	db := squealx.NewDb(sqlDB, "sqlite", "authorizer")
	if err := stores.Migrate(db); err != nil {
		fatal("migrate", err)
	}

	svc := authorizer.New(
		stores.NewSQLRoleStore(db),
		stores.NewSQLPolicyStore(db),
		stores.NewSQLResourceStore(db),
		authorizer.WithLogger(logger.NewPhusluLogger()),
	)
	defer svc.Close()

	if err := svc.SeedOrganization(context.Background(), os.Args[4], "authorizer-config", cfg); err != nil {
		fatal("seed", err)
	}
	fmt.Printf("Seeded organization %s\n", os.Args[4])
}

func fatal(op string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", op, err)
	os.Exit(1)
}
