// Package parse turns Korean natural-language time expressions into absolute
// instants in Korea Standard Time.
//
// Parse tries an ordered list of independent grammar rules and returns the
// first success. Unrecognized text yields ErrNoMatch; text that matches a
// rule but names an impossible time (day 30 of February, hour 13 on a
// 12-hour clock) yields a ValueError.
package parse
