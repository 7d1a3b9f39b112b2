package payments

import (
	"encoding/base64"
	"time"
)

const timestampLayout = "20060102150405"

// Daraja validates timestamps against East Africa Time.
var eat = time.FixedZone("EAT", 3*60*60)

// Timestamp formats t the way Daraja expects it (YYYYMMDDHHmmss, EAT).
func Timestamp(t time.Time) string {
	return t.In(eat).Format(timestampLayout)
}

// Password derives the STK push password for a shortcode/passkey at timestamp.
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}
