package domain

import (
	"fmt"
	"net/url"
	"regexp"
)

// subdomainRegex 只允许小写字母、数字和连字符，且首尾不能是连字符。
var subdomainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

const maxSubdomainLen = 63

// ValidateSubdomain 校验子域名可安全用作 DNS label 和平台应用名。
func ValidateSubdomain(subdomain string) error {
	if len(subdomain) == 0 || len(subdomain) > maxSubdomainLen {
		return fmt.Errorf("%w: subdomain must be 1-%d characters", ErrInvalidInput, maxSubdomainLen)
	}
	if !subdomainRegex.MatchString(subdomain) {
		return fmt.Errorf("%w: subdomain %q must match [a-z0-9-]", ErrInvalidInput, subdomain)
	}
	return nil
}

// ValidateDisplay 校验展示数据中与部署方式相关的字段。
func ValidateDisplay(d DisplayData) error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	switch d.DeploymentType {
	case FlavorTemplate:
		if d.HTMLCode != "" {
			return fmt.Errorf("%w: htmlCode is only allowed for %s deployments", ErrInvalidInput, FlavorCustomHTML)
		}
	case FlavorCustomHTML:
		if d.HTMLCode == "" {
			return fmt.Errorf("%w: htmlCode is required for %s deployments", ErrInvalidInput, FlavorCustomHTML)
		}
	default:
		return fmt.Errorf("%w: unknown deploymentType %q", ErrInvalidInput, d.DeploymentType)
	}
	for _, l := range d.Links {
		if err := validateHTTPURL(l.URL); err != nil {
			return err
		}
	}
	if d.LogoURL != "" {
		if err := validateHTTPURL(d.LogoURL); err != nil {
			return err
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidInput, raw)
	}
	return nil
}
