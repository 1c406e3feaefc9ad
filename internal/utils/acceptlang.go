package utils

import (
	"sort"
	"strconv"
	"strings"
)

type langCandidate struct {
	lang string
	q    float64
}

// DetermineLocale picks the response locale: an explicit lang query value
// wins, then the highest-q supported Accept-Language entry, then def.
// Regional tags collapse to their base language (zh-CN -> zh).
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	sup := make(map[string]struct{}, len(supported))
	for _, s := range supported {
		sup[strings.ToLower(s)] = struct{}{}
	}
	pick := func(lang string) (string, bool) {
		l := strings.ToLower(strings.TrimSpace(lang))
		if l == "" {
			return "", false
		}
		if _, ok := sup[l]; ok {
			return l, true
		}
		if i := strings.IndexAny(l, "-_"); i > 0 {
			if _, ok := sup[l[:i]]; ok {
				return l[:i], true
			}
		}
		return "", false
	}

	if v, ok := pick(queryLang); ok {
		return v
	}
	cands := parseAcceptLanguage(acceptLang)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].q > cands[j].q })
	for _, c := range cands {
		if c.q <= 0 {
			break
		}
		if v, ok := pick(c.lang); ok {
			return v
		}
	}
	if v, ok := pick(def); ok {
		return v
	}
	if len(supported) > 0 {
		return strings.ToLower(supported[0])
	}
	return "en"
}

// parseAcceptLanguage splits "en-US,en;q=0.9,zh;q=0.8" into tags with
// q-values. A malformed q counts as 0.
func parseAcceptLanguage(header string) []langCandidate {
	var out []langCandidate
	for _, part := range strings.Split(header, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		c := langCandidate{lang: p, q: 1}
		if semi := strings.Index(p, ";"); semi >= 0 {
			c.lang = strings.TrimSpace(p[:semi])
			for _, param := range strings.Split(p[semi+1:], ";") {
				k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
				if !ok || strings.TrimSpace(k) != "q" {
					continue
				}
				q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
				if err != nil || q < 0 || q > 1 {
					q = 0
				}
				c.q = q
			}
		}
		out = append(out, c)
	}
	return out
}
