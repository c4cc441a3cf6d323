package stealth

import (
	"fmt"
	"strings"
)

// Script returns JavaScript evaluated before any page script to hide the
// usual automation markers.
func Script(p Profile) string {
	langs := languages(p.AcceptLanguage)
	return fmt.Sprintf(`(() => {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
  Object.defineProperty(navigator, 'platform', { get: () => %q });
  Object.defineProperty(navigator, 'languages', { get: () => [%s] });
  Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
  Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 8 });
  window.chrome = window.chrome || { runtime: {} };
  const query = window.navigator.permissions && window.navigator.permissions.query;
  if (query) {
    window.navigator.permissions.query = (params) =>
      params.name === 'notifications'
        ? Promise.resolve({ state: Notification.permission })
        : query(params);
  }
})();`, p.Platform, langs)
}

func languages(acceptLanguage string) string {
	var out []string
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag != "" {
			out = append(out, fmt.Sprintf("%q", tag))
		}
	}
	if len(out) == 0 {
		return `"en-US", "en"`
	}
	return strings.Join(out, ", ")
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
