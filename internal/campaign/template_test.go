package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTemplate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hi {influencer_name}!", "Hi {{influencer_name}}!"},
		{"Hi {{influencer_name}}!", "Hi {{influencer_name}}!"},
		{"{influencer_name} and {{influencer_name}} and {{{influencer_name}}}", "{{influencer_name}} and {{influencer_name}} and {{{influencer_name}}}"},
		{"Use code {promo} at checkout, {influencer_name}", "Use code {promo} at checkout, {{influencer_name}}"},
		{"{name} {Influencer_Name}", "{name} {Influencer_Name}"},
		{"no placeholders", "no placeholders"},
		{"{not a placeholder}", "{not a placeholder}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeTemplate(tt.input), tt.input)
	}
}

func TestTemplate_Render(t *testing.T) {
	tmpl := Template{
		Subject: "Collab with {influencer_name}?",
		Body:    "Hi {{influencer_name}},\nwe love your work, {{influencer_name}}. {{other}} stays.",
	}.Normalize()

	subject, body := tmpl.Render("Jane")
	assert.Equal(t, "Collab with Jane?", subject)
	assert.Equal(t, "Hi Jane,\nwe love your work, Jane. {{other}} stays.", body)
}

func TestTemplate_Empty(t *testing.T) {
	assert.True(t, Template{Subject: " ", Body: "x"}.Empty())
	assert.True(t, Template{Subject: "x"}.Empty())
	assert.False(t, Template{Subject: "x", Body: "y"}.Empty())
}
