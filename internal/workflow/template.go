package workflow

import (
	"regexp"

	"github.com/rpattn/contentcore/internal/domain"
)

// templatePattern matches {{field}} references inside action parameter
// values. The vocabulary is deliberately small: content data fields plus the
// reserved id, contentType, status and sensitivity names.
var templatePattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// ResolveParameters substitutes template references in every parameter value
// with the triggering content's current field values. References that
// resolve to nothing are left in place so a misconfigured workflow is
// visible in its execution log.
func ResolveParameters(params map[string]string, content domain.ContentDocument) map[string]string {
	if len(params) == 0 {
		return map[string]string{}
	}

	resolved := make(map[string]string, len(params))
	for key, value := range params {
		resolved[key] = resolveTemplate(value, content)
	}
	return resolved
}

func resolveTemplate(value string, content domain.ContentDocument) string {
	return templatePattern.ReplaceAllStringFunc(value, func(match string) string {
		name := templatePattern.FindStringSubmatch(match)[1]
		switch name {
		case "id":
			return content.ID.String()
		case "contentType":
			return content.ContentType
		case "status":
			return string(content.Status)
		case "sensitivity":
			return string(content.Sensitivity)
		}
		if fieldValue, ok := content.Data[name]; ok {
			return domain.StringValue(fieldValue)
		}
		return match
	})
}
