package domain

import (
	"errors"
	"testing"
)

func TestValidateSubdomain(t *testing.T) {
	tests := []struct {
		subdomain string
		wantErr   bool
	}{
		{"acme", false},
		{"acme-2", false},
		{"a", false},
		{"0day", false},
		{"", true},
		{"Acme", true},
		{"acme_corp", true},
		{"acme.example", true},
		{"-acme", true},
		{"acme-", true},
		{"ac me", true},
		{"abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghijkl", true},
	}
	for _, tt := range tests {
		err := ValidateSubdomain(tt.subdomain)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSubdomain(%q) error = %v, wantErr %v", tt.subdomain, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateSubdomain(%q) error = %v, want ErrInvalidInput", tt.subdomain, err)
		}
	}
}

func TestValidateDisplay(t *testing.T) {
	tests := []struct {
		name    string
		display DisplayData
		wantErr bool
	}{
		{"template", DisplayData{Name: "Acme", DeploymentType: FlavorTemplate}, false},
		{"custom html", DisplayData{Name: "Acme", DeploymentType: FlavorCustomHTML, HTMLCode: "<b>hi</b>"}, false},
		{"missing name", DisplayData{DeploymentType: FlavorTemplate}, true},
		{"custom html without html", DisplayData{Name: "Acme", DeploymentType: FlavorCustomHTML}, true},
		{"template with html", DisplayData{Name: "Acme", DeploymentType: FlavorTemplate, HTMLCode: "<p>"}, true},
		{"unknown flavor", DisplayData{Name: "Acme", DeploymentType: "static"}, true},
		{"bad link", DisplayData{Name: "Acme", DeploymentType: FlavorTemplate, Links: []Link{{Label: "x", URL: "javascript:alert(1)"}}}, true},
		{"good link", DisplayData{Name: "Acme", DeploymentType: FlavorTemplate, Links: []Link{{Label: "x", URL: "https://acme.io"}}}, false},
		{"bad logo", DisplayData{Name: "Acme", DeploymentType: FlavorTemplate, LogoURL: "ftp://logo"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDisplay(tt.display)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDisplay() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
