package migrations

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	chstore "arcade-pot/internal/storage/clickhouse"
)

var databaseName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RunClickhouseMigrations creates the DSN's database if needed and applies
// every embedded statement. Statements must be idempotent.
// Returns a connection to the target database for reuse.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	db, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	files, err := load(clickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+db)
	if closeErr := admin.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", db, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, db)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	for _, m := range files {
		stmts, err := splitStatements(m.sql)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("migration %s: %w", m.name, err)
		}
		// the native protocol rejects multi-statement queries
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}
	return conn, nil
}

// splitStatements drops -- comment lines and splits on semicolons.
// A semicolon inside a quoted literal is rejected rather than split.
func splitStatements(sql string) ([]string, error) {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	body := b.String()

	quoted := false
	for _, ch := range body {
		switch {
		case ch == '\'':
			quoted = !quoted
		case ch == ';' && quoted:
			return nil, errors.New("semicolon inside string literal")
		}
	}

	var stmts []string
	for _, part := range strings.Split(body, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}

func databaseFromDSN(dsn string) (string, error) {
	db, err := chstore.Database(dsn)
	if err != nil {
		return "", err
	}
	if db == "" {
		return "", errors.New("clickhouse dsn missing database")
	}
	if !databaseName.MatchString(db) {
		return "", fmt.Errorf("invalid clickhouse database name %q", db)
	}
	return db, nil
}
