// File: internal/login/classifier_test.go
package login

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/keepalive-cli/internal/config"
)

func defaultClassifier() *Classifier {
	cfg := config.NewDefaultConfig().Login
	return NewClassifier(cfg.SuccessKeywords, cfg.ErrorKeywords)
}

func TestClassifier_Precedence(t *testing.T) {
	c := defaultClassifier()

	tests := []struct {
		name   string
		state  PageState
		want   Classification
		reason string
	}{
		{
			name:   "success beats error when both are present",
			state:  PageState{URL: "https://h/home", Content: "<div>Dashboard</div><p class=error>Error loading widget</p>"},
			want:   Success,
			reason: `"dashboard" in page`,
		},
		{
			name:   "success keyword in the URL path",
			state:  PageState{URL: "https://h/Dashboard/", Content: "nothing"},
			want:   Success,
			reason: "in URL",
		},
		{
			name:   "success keyword in the title",
			state:  PageState{URL: "https://h/x", Title: "Welcome back"},
			want:   Success,
			reason: "in title",
		},
		{
			name:   "localized success phrase",
			state:  PageState{URL: "https://h/x", Content: "Strona Główna"},
			want:   Success,
		},
		{
			name:   "error keyword reports the fragment",
			state:  PageState{URL: "https://h/login/", Content: "Please try again. Invalid username or password."},
			want:   Failure,
			reason: "invalid username or password",
		},
		{
			name:   "still on a login URL",
			state:  PageState{URL: "https://h/login/?next=/", Content: "plain"},
			want:   Failure,
			reason: "still on login page",
		},
		{
			name:  "same non-root path as the login candidate",
			state: PageState{URL: "https://h/signin/", Content: "plain", LoginURL: "https://h/signin"},
			want:  Failure,
		},
		{
			name:   "page moved with no signal",
			state:  PageState{URL: "https://h/somewhere", Content: "plain"},
			want:   Indeterminate,
			reason: "no explicit signal",
		},
		{
			name:  "root login candidate does not imply failure",
			state: PageState{URL: "https://h/", Content: "plain", LoginURL: "https://h"},
			want:  Indeterminate,
		},
		{
			name:  "panel host names are ignored",
			state: PageState{URL: "https://panel1.serv00.com/login/", Content: "plain"},
			want:  Failure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.state)
			assert.Equal(t, tt.want, v.Classification, v.Reason)
			if tt.reason != "" {
				assert.Contains(t, v.Reason, tt.reason)
			}
		})
	}
}

func TestClassifier_CustomKeywords(t *testing.T) {
	c := NewClassifier([]string{"  Mein Konto ", ""}, []string{"FEHLER"})

	assert.Equal(t, Success, c.Classify(PageState{URL: "https://h/x", Content: "mein konto"}).Classification)
	assert.Equal(t, Failure, c.Classify(PageState{URL: "https://h/x", Content: "Ein Fehler ist aufgetreten"}).Classification)
	assert.Equal(t, Indeterminate, c.Classify(PageState{URL: "https://h/x", Content: "dashboard"}).Classification,
		"defaults are replaced, not merged")
}

func TestExcerpt(t *testing.T) {
	body := "ąęść " + "invalid" + "   password\n\nhere"
	idx := len("ąęść ")
	assert.Equal(t, "ąęść invalid password here", excerpt(body, idx, len("invalid")))
}

func TestOutcome_Succeeded(t *testing.T) {
	assert.True(t, Outcome{Classification: Success}.Succeeded())
	assert.False(t, Outcome{Classification: Failure, SoftSuccess: true}.Succeeded())
	assert.True(t, Outcome{Classification: Indeterminate, SoftSuccess: true}.Succeeded())
	assert.False(t, Outcome{Classification: Indeterminate}.Succeeded())
}
