/*
Package dsl builds bot graphs in Go instead of editor documents.

It is a fluent builder over the same node kinds the flow editor produces,
useful for tests, generated bots and fixtures:

	b := dsl.New("greeter")
	b.Var("name", "", "string")

	b.Start("start").To("check")
	b.Condition("check", "name", "not_empty", nil).
		Then("hello").
		Else("ask")
	b.Message("hello", "Hello {{name}}!")
	b.Message("ask", "What is your name?")

	doc, err := b.Document() // JSON accepted by CreateDebugSession
	graph, err := b.Build()  // parsed and indexed *domain.Graph

Build runs the document through the same parser as uploaded bots, so a
built graph obeys the same structural rules.
*/
package dsl
