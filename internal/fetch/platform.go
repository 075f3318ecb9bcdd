package fetch

import (
	"net/url"
	"strings"
	"time"
)

// Platform represents a known applicant tracking system.
type Platform string

const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformAshby      Platform = "ashby"
	PlatformUnknown    Platform = "unknown"
)

// DetectPlatform identifies the job board from a posting URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Hostname())
	switch {
	case strings.HasSuffix(host, "greenhouse.io"):
		return PlatformGreenhouse
	case strings.HasSuffix(host, "lever.co"):
		return PlatformLever
	case strings.HasSuffix(host, "myworkdayjobs.com"), strings.HasSuffix(host, "workday.com"):
		return PlatformWorkday
	case strings.HasSuffix(host, "ashbyhq.com"):
		return PlatformAshby
	default:
		return PlatformUnknown
	}
}

// ContentSelectors lists selectors for the posting body, best first.
func (p Platform) ContentSelectors() []string {
	switch p {
	case PlatformGreenhouse:
		return []string{".job__description.body", ".job__description", "#content", ".job-post-container"}
	case PlatformLever:
		return []string{".posting-page", ".section-wrapper.page-full-width", ".posting-description", ".content"}
	case PlatformWorkday:
		return []string{"[data-automation-id='jobPostingDescription']", "[data-automation-id='jobDescription']", ".job-description"}
	case PlatformAshby:
		return []string{".ashby-job-posting-right-pane", "._descriptionText_oj0x8_198", "main"}
	default:
		return []string{
			".job-description",
			"#job-description",
			".job-details",
			".posting-content",
			"[data-testid='job-description']",
			"main",
			"article",
			"#content",
		}
	}
}

// NoiseSelectors lists elements removed before text extraction.
func (p Platform) NoiseSelectors() []string {
	common := []string{
		"form",
		".application-form",
		"#application-form",
		".apply-button-container",
		".eeo-statement",
		".voluntary-disclosure",
		".social-share",
		".share-buttons",
		".cookie-banner",
		".cookie-consent",
		"#onetrust-banner-sdk",
	}

	switch p {
	case PlatformGreenhouse:
		return append(common, ".application--wrapper", ".voluntary-self-id", "#usa_self_id_section")
	case PlatformLever:
		return append(common, ".apply-section", ".posting-apply")
	case PlatformWorkday:
		return append(common, "[data-automation-id='applyButton']", "[data-automation-id='footerContainer']", "[data-automation-id='socialIcons']")
	default:
		return common
	}
}

// WaitSelector is the element the browser waits for before extracting.
func (p Platform) WaitSelector() string {
	switch p {
	case PlatformGreenhouse:
		return ".job__description, #content"
	case PlatformLever:
		return ".posting-page, .content"
	case PlatformWorkday:
		return "[data-automation-id='jobPostingDescription'], [data-automation-id='jobDescription']"
	default:
		return "body"
	}
}

// SettleDelay is how long the browser idles after the wait selector is ready.
// Workday renders its description late.
func (p Platform) SettleDelay() time.Duration {
	if p == PlatformWorkday {
		return 3 * time.Second
	}
	return time.Second
}
