// Package prompt builds the system/user message pair for text-to-SQL
// generation against an OpenAI-compatible chat-completions endpoint.
package prompt

import (
	"fmt"
	"strings"
	"time"
)

// Bundle is the message pair sent to the model.
type Bundle struct {
	System string
	User   string
}

// Options tune prompt construction. Zero values fall back to the demo
// schema, the postgres dialect, and a limit of 100.
type Options struct {
	Dialect  string
	Schema   string   // introspected schema text; empty uses DefaultSchema
	Context  []string // retrieved context snippets, most relevant first
	MaxLimit int
	Now      time.Time // anchor for relative date expressions; zero = time.Now
}

// DefaultSchema describes the built-in demo database, used when schema
// introspection is disabled.
const DefaultSchema = `-- PostgreSQL schema (public)
TABLE customers (
  customer_id serial primary key,
  name text not null,
  email text unique not null,
  created_at timestamp not null
);

TABLE products (
  product_id serial primary key,
  name text not null,
  category text not null,
  price_jpy integer not null,
  is_active boolean not null
);

TABLE orders (
  order_id serial primary key,
  customer_id integer not null references customers(customer_id),
  order_date date not null,
  status text not null, -- one of: placed, paid, shipped, cancelled
  total_jpy integer not null
);

TABLE order_items (
  order_item_id serial primary key,
  order_id integer not null references orders(order_id),
  product_id integer not null references products(product_id),
  quantity integer not null,
  unit_price_jpy integer not null
);

-- Notes:
-- orders.total_jpy is the order total.
-- order_items has line items; join order_items->orders and order_items->products when needed.`

// Build assembles the prompt pair for one question.
func Build(question string, opts Options) Bundle {
	dialect := opts.Dialect
	if dialect == "" {
		dialect = "postgres"
	}
	schema := opts.Schema
	if strings.TrimSpace(schema) == "" {
		schema = DefaultSchema
	}
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	system := fmt.Sprintf(`You are a careful Text-to-SQL assistant for %s.
Follow ALL rules:

[Hard rules]
- Output must be valid JSON matching the given schema (handled by response_format).
- Generate exactly ONE SQL statement.
- Only SELECT is allowed. Never use INSERT/UPDATE/DELETE/MERGE/DDL.
- Never use transactions, locks, or PRAGMA.
- Use only the tables/columns that exist in the schema.
- If the question is ambiguous, still produce the best SELECT and list assumptions.

[Safety & performance]
- Always include LIMIT %d unless user explicitly asks for fewer.
- Prefer simple queries; avoid heavy CROSS JOINs.
- Dates: interpret relative expressions using TODAY = %s.

[Answer style]
- Do not explain. The JSON will contain "sql" and optional "assumptions".
`, dialect, maxLimit, now.Format("2006-01-02"))

	var b strings.Builder
	fmt.Fprintf(&b, "[Schema]\n%s\n", schema)
	if len(opts.Context) > 0 {
		b.WriteString("\n[Context]\n")
		for _, c := range opts.Context {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	fmt.Fprintf(&b, "\n[Question]\n%s\n", question)

	return Bundle{System: system, User: b.String()}
}
