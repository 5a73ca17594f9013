// Copyright 2026 © The Mafiarena Authors
// SPDX-License-Identifier: Apache-2.0

package groq

import "testing"

func TestNew(t *testing.T) {
	c := New("test-key")
	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("expected baseURL %s, got %s", DefaultBaseURL, c.BaseURL())
	}
}
