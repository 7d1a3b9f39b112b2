package utils

import "strings"

// NormalizeMSISDN rewrites Kenyan mobile numbers to the 2547XXXXXXXX / 2541XXXXXXXX
// form Daraja expects. Inputs it does not recognise are returned trimmed but
// otherwise unchanged so the provider can reject them.
func NormalizeMSISDN(phone string) string {
	p := strings.TrimSpace(phone)
	p = strings.NewReplacer(" ", "", "-", "").Replace(p)
	p = strings.TrimPrefix(p, "+")

	switch {
	case len(p) == 10 && p[0] == '0' && (p[1] == '7' || p[1] == '1'):
		return "254" + p[1:]
	case len(p) == 9 && (p[0] == '7' || p[0] == '1'):
		return "254" + p
	}
	return p
}
