package downloader

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/italolelis/video_downloader/internal/video"
)

// dispositionFilename matches a filename or filename* parameter and captures a
// double-quoted, single-quoted or bare value running up to the next ';'.
var dispositionFilename = regexp.MustCompile(`(filename[^;=\n]*)=(?:"([^"\n]*)"|'([^'\n]*)'|([^;\n]*))`)

// ResolveFilename picks the output name for a download: the base name of the
// filename carried by the Content-Disposition header when there is a usable
// one, otherwise "video.<format>".
func ResolveFilename(contentDisposition, format string) string {
	if name := video.BaseFilename(filenameFromDisposition(contentDisposition)); name != "" {
		return name
	}

	return "video." + format
}

func filenameFromDisposition(header string) string {
	m := dispositionFilename.FindStringSubmatch(header)
	if m == nil {
		return ""
	}

	param := m[1]
	value := m[2] + m[3] + m[4]
	value = strings.Trim(strings.TrimSpace(value), `"'`)

	if strings.HasSuffix(param, "*") {
		value = decodeExtValue(value)
	}

	return value
}

// decodeExtValue decodes an RFC 5987 value such as UTF-8''na%C3%AFve.mp4.
// Values that are not in that form are returned unchanged.
func decodeExtValue(v string) string {
	parts := strings.SplitN(v, "'", 3)
	if len(parts) != 3 {
		return v
	}

	decoded, err := url.PathUnescape(parts[2])
	if err != nil {
		return v
	}

	return decoded
}
