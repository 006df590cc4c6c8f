package analyzer

// Summary holds informational tallies re-derived from the raw text. They are
// independent of severity and of which rules are enabled.
type Summary struct {
	InlineHandlers       int  `json:"inline_handlers" yaml:"inline_handlers"`
	NewWindowLinks       int  `json:"new_window_links" yaml:"new_window_links"`
	UnsafeLinks          int  `json:"unsafe_links" yaml:"unsafe_links"`
	Forms                int  `json:"forms" yaml:"forms"`
	StateChangingForms   int  `json:"state_changing_forms" yaml:"state_changing_forms"`
	FormsWithoutToken    int  `json:"forms_without_token" yaml:"forms_without_token"`
	InsecureFormActions  int  `json:"insecure_form_actions" yaml:"insecure_form_actions"`
	Iframes              int  `json:"iframes" yaml:"iframes"`
	UnsandboxedIframes   int  `json:"unsandboxed_iframes" yaml:"unsandboxed_iframes"`
	InsecureResources    int  `json:"insecure_resources" yaml:"insecure_resources"`
	SensitiveComments    int  `json:"sensitive_comments" yaml:"sensitive_comments"`
	Images               int  `json:"images" yaml:"images"`
	ImagesWithoutLazy    int  `json:"images_without_lazy" yaml:"images_without_lazy"`
	HasCSP               bool `json:"has_csp" yaml:"has_csp"`
	HasFrameProtection   bool `json:"has_frame_protection" yaml:"has_frame_protection"`
	HasReferrerPolicy    bool `json:"has_referrer_policy" yaml:"has_referrer_policy"`
	HasDiscoveryMetadata bool `json:"has_discovery_metadata" yaml:"has_discovery_metadata"`
}

// Summarize computes the tallies for text.
func Summarize(text string) Summary {
	return NewDocument(text).Summary()
}

// Summary computes the tallies for the document.
func (d *Document) Summary() Summary {
	s := Summary{
		InlineHandlers:    len(inlineHandlers(d)),
		NewWindowLinks:    len(blankTargetLinks(d)),
		UnsafeLinks:       len(unsafeLinks(d)),
		InsecureResources: len(insecureResources(d)),
		SensitiveComments: len(sensitiveComments(d)),
	}
	s.HasCSP = len(cspMetaTags(d)) > 0
	s.HasFrameProtection = hasFrameProtection(d)
	s.HasReferrerPolicy = hasReferrerPolicy(d)
	s.HasDiscoveryMetadata = len(d.metaTags("name", "description")) > 0 && hasSocialMetadata(d)

	for _, f := range d.forms {
		s.Forms++
		if f.StateChanging() {
			s.StateChangingForms++
			if !f.HasToken() {
				s.FormsWithoutToken++
			}
		}
		if isInsecureURL(f.Open.Value("action")) {
			s.InsecureFormActions++
		}
	}

	frames, unsandboxed := unsandboxedIframes(d)
	s.Iframes, s.UnsandboxedIframes = len(frames), len(unsandboxed)

	images, eager := imagesWithoutLazyLoading(d)
	s.Images, s.ImagesWithoutLazy = len(images), len(eager)

	return s
}
