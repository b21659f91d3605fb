package ui

import (
	"fmt"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/hanehara/tsugite/internal/core/port"
)

const pageStyle = `
	body { font-family: system-ui, sans-serif; margin: 0; background: #f6f8fa; color: #1f2328; }
	main { max-width: 960px; margin: 0 auto; padding: 2rem 1rem; }
	.card { background: #fff; border: 1px solid #d1d9e0; border-radius: 6px; padding: 1rem 1.25rem; margin-bottom: 1rem; }
	.muted { color: #59636e; font-size: 0.875rem; }
	.error { color: #a40e26; }
	textarea, input[type=text] { width: 100%; box-sizing: border-box; font: inherit; padding: 0.5rem; border: 1px solid #d1d9e0; border-radius: 6px; }
	button { font: inherit; padding: 0.4rem 1rem; border-radius: 6px; border: 1px solid #1f883d; background: #1f883d; color: #fff; cursor: pointer; }
	table { border-collapse: collapse; width: 100%; font-size: 0.875rem; }
	th, td { border: 1px solid #d1d9e0; padding: 0.3rem 0.6rem; text-align: left; }
	th { background: #f6f8fa; }
	pre { background: #f6f8fa; padding: 0.75rem; border-radius: 6px; overflow-x: auto; }
	nav a { margin-right: 1rem; }
`

func appPage(title string, body ...Node) Node {
	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(title+" | tsugite")),
			StyleEl(Raw(pageStyle)),
		),
		Body(
			Main(
				Nav(
					A(Href("/"), Text("Ask")),
					A(Href("/schema"), Text("Schema")),
				),
				H1(Text(title)),
				Group(body),
			),
		),
	)
}

func errorPage(title, message string) Node {
	return appPage(title, Div(Class("card"), P(Class("error"), Text(message))))
}

func homePage(question string, current *Turn, history []Turn) Node {
	body := []Node{questionForm(question)}
	if current != nil {
		body = append(body, turnCard(current, true))
	}
	if len(history) > 0 {
		body = append(body, historyCard(history))
	}
	return appPage("Ask the database", body...)
}

func questionForm(question string) Node {
	return Div(
		Class("card"),
		Form(
			Method("post"),
			Action("/ask"),
			Label(Text("Question")),
			Textarea(Name("question"), Rows("3"), Required(), Text(question)),
			P(
				Label(
					Input(Type("checkbox"), Name("introspect"), Value("1")),
					Text(" Ground the generation in the live schema"),
				),
			),
			Button(Type("submit"), Text("Ask")),
		),
	)
}

func turnCard(t *Turn, withHeading bool) Node {
	var parts []Node
	if withHeading {
		parts = append(parts, H2(Text("Answer")))
	}

	if t.Err != "" {
		parts = append(parts, P(Class("error"), Text(t.Err)))
	}
	if t.SQL != "" {
		parts = append(parts, H3(Text("SQL")), Pre(Text(t.SQL)))
	}
	if len(t.Assumptions) > 0 {
		items := make([]Node, 0, len(t.Assumptions))
		for _, a := range t.Assumptions {
			items = append(items, Li(Text(a)))
		}
		parts = append(parts, H3(Text("Assumptions")), Ul(Group(items)))
	}
	if t.Result != nil {
		parts = append(parts, resultTable(t.Result))
	}

	return Div(Class("card"), Group(parts))
}

func resultTable(result *port.QueryResult) Node {
	headerCols := make([]Node, 0, len(result.Columns))
	for _, c := range result.Columns {
		headerCols = append(headerCols, Th(Text(c)))
	}

	rows := make([]Node, 0, len(result.Rows))
	for _, row := range result.Rows {
		cells := make([]Node, 0, len(row))
		for _, v := range row {
			cells = append(cells, Td(Text(cellString(v))))
		}
		rows = append(rows, Tr(Group(cells)))
	}

	return Group([]Node{
		P(Class("muted"), Text(fmt.Sprintf("%d row(s)", len(result.Rows)))),
		Table(
			THead(Tr(Group(headerCols))),
			TBody(Group(rows)),
		),
	})
}

func historyCard(history []Turn) Node {
	items := make([]Node, 0, len(history))
	for _, t := range history {
		status := "ok"
		if t.Err != "" {
			status = "failed"
		}
		items = append(items, Li(
			A(Href("/turns/"+t.ID), Text(t.Question)),
			Span(Class("muted"), Text(fmt.Sprintf(" (%s, %s)", status, t.At.Format("15:04:05")))),
		))
	}
	return Div(
		Class("card"),
		H2(Text("History")),
		Ul(Group(items)),
	)
}

func turnPage(t Turn) Node {
	return appPage(t.Question, turnCard(&t, false))
}

func schemaPage(summary, errMsg string) Node {
	var body Node
	switch {
	case errMsg != "":
		body = P(Class("error"), Text(errMsg))
	case summary == "":
		body = P(Class("muted"), Text("No base tables found."))
	default:
		body = Pre(Text(summary))
	}
	return appPage("Schema", Div(Class("card"), body))
}
