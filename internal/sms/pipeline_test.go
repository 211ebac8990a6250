package sms

import (
	"strings"
	"testing"
)

func TestValidateRecipientBounds(t *testing.T) {
	tooMany := make([]string, MaxRecipients+1)
	for i := range tooMany {
		tooMany[i] = "+1555"
	}

	cases := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"empty recipients", Request{Recipients: nil, Body: "hi"}, true},
		{"exactly max recipients", Request{Recipients: make([]string, MaxRecipients), Body: "hi"}, false},
		{"over max recipients", Request{Recipients: tooMany, Body: "hi"}, true},
		{"empty body", Request{Recipients: []string{"+1555"}, Body: ""}, true},
		{"max body length", Request{Recipients: []string{"+1555"}, Body: strings.Repeat("x", MaxBodyLength)}, false},
		{"over max body length", Request{Recipients: []string{"+1555"}, Body: strings.Repeat("x", MaxBodyLength+1)}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validate(c.req)
			if (err != nil) != c.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}
