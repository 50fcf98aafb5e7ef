package migration

import (
	"context"
	"fmt"
	"strings"
)

type script struct {
	s        *Schema
	name     string
	migrate  []string
	rollback []string
}

// NewScript builds a migration out of plain SQL statements, as loaded from
// migration files. An empty rollback list makes Down a no-op.
func NewScript(name string, migrate, rollback []string) Constructor {
	return func(s *Schema) Migration {
		return &script{s: s, name: name, migrate: migrate, rollback: rollback}
	}
}

func (sc *script) Name() string {
	return sc.name
}

func (sc *script) Up(ctx context.Context) error {
	return sc.run(ctx, "migrate", sc.migrate)
}

func (sc *script) Down(ctx context.Context) error {
	return sc.run(ctx, "rollback", sc.rollback)
}

func (sc *script) run(ctx context.Context, direction string, statements []string) error {
	for i, stmt := range statements {
		msg := fmt.Sprintf("%s %s statement %d of %d", sc.name, direction, i+1, len(statements))
		if err := sc.s.Exec(ctx, stmt, msg); err != nil {
			return err
		}
	}

	return nil
}

// SplitStatements splits a SQL script on semicolons outside of quotes,
// comments and dollar quoted bodies ($$ or $tag$). Backslash escapes are
// honoured inside quotes. Statements made only of comments are dropped.
func SplitStatements(sql string) []string {
	var (
		result  []string
		current strings.Builder
		quote   byte
		tag     string
		hasCode bool
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if hasCode && stmt != "" {
			result = append(result, stmt)
		}
		hasCode = false
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		switch {
		case quote != 0:
			current.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(sql) {
				i++
				current.WriteByte(sql[i])
				continue
			}
			if c == quote {
				quote = 0
			}
		case tag != "":
			if strings.HasPrefix(sql[i:], tag) {
				current.WriteString(tag)
				i += len(tag) - 1
				tag = ""
				continue
			}
			current.WriteByte(c)
		case c == '\'' || c == '"' || c == '`':
			quote = c
			hasCode = true
			current.WriteByte(c)
		case c == '$' && dollarTag(sql[i:]) != "":
			tag = dollarTag(sql[i:])
			hasCode = true
			current.WriteString(tag)
			i += len(tag) - 1
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end == -1 {
				end = len(sql) - i
			}
			current.WriteString(sql[i : i+end])
			i += end - 1
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end == -1 {
				current.WriteString(sql[i:])
				i = len(sql)
				continue
			}
			current.WriteString(sql[i : i+end+4])
			i += end + 3
		case c == ';':
			flush()
		default:
			if !isSpace(c) {
				hasCode = true
			}
			current.WriteByte(c)
		}
	}

	flush()

	return result
}

// dollarTag returns the opening $tag$ or $$ at the start of s, if any.
// Positional parameters such as $1 are not tags.
func dollarTag(s string) string {
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$':
			return s[:i+1]
		case c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z'):
		case '0' <= c && c <= '9' && i > 1:
		default:
			return ""
		}
	}

	return ""
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
