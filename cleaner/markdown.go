package cleaner

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// newMarkdownConverter renders listing grids as markdown tables so a dump
// shows at a glance which cells the page actually had.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// newPolicy keeps structure and text but drops scripts, handlers and
// styles, so the markdown is built from inert HTML. Class attributes stay:
// they are what the selectors match on.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "id").Globally()
	p.AllowElements("div", "span", "button", "nav", "section")
	return p
}

// ToMarkdown sanitizes htmlContent and converts it to markdown. domain
// resolves relative links.
func ToMarkdown(conv *converter.Converter, policy *bluemonday.Policy, htmlContent, domain string) (string, error) {
	safe := policy.Sanitize(htmlContent)
	if domain == "" {
		return conv.ConvertString(safe)
	}
	return conv.ConvertString(safe, converter.WithDomain(domain))
}
