package model

import "testing"

func TestKnownProvider(t *testing.T) {
	for _, name := range []string{ProviderGoogle, ProviderFacebook, ProviderGitHub, ProviderTwitter} {
		if !KnownProvider(name) {
			t.Errorf("KnownProvider(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"", "myspace", "GitHub", "google "} {
		if KnownProvider(name) {
			t.Errorf("KnownProvider(%q) = true, want false", name)
		}
	}
}
