/*
Package dsl provides a fluent Go builder for chatbot flows.

It is an alternative to YAML or JSON flow files when flows are generated from
code or written inline in tests.

Example usage:

	flow, err := dsl.New().
		Add("greet").Message("Hi there!").Go("menu").
		Add("menu").QuickReplies("Choose an option:", "Yes", "No").
		Build()
	if err != nil {
		return err
	}
	sim := simulator.New(flow)
*/
package dsl
