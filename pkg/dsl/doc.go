/*
Package dsl provides a fluent builder for constructing convo definitions in Go
instead of YAML or JSON, which is handy for tests, generated flows and
embedding.

Example usage:

	def, err := dsl.New("support").
		Name("Support").
		Add("welcome").Start("Hi {{name}}!").Go("menu").
		Add("menu").Menu("How can we help?").
		Option("Talk to sales", "sales").
		Option("Leave", "bye").
		Add("sales").Ask("Your email?", "email").
		Validate(domain.RuleEmail, nil, "").
		Go("bye").
		Add("bye").End("Thanks, bye!").
		Build()
*/
package dsl
