// Package respwire holds the small amount of manual RESP encoding the
// core needs outside of redcon's own Conn.Write* helpers: building an
// argv frame to forward to a replica link or a master handshake probe.
package respwire

import "strconv"

// EncodeArray renders argv as a RESP array of bulk strings, e.g. the
// wire form of ["SET", "a", "1"].
func EncodeArray(argv [][]byte) []byte {
	out := make([]byte, 0, 32)
	out = append(out, '*')
	out = strconv.AppendInt(out, int64(len(argv)), 10)
	out = append(out, '\r', '\n')
	for _, a := range argv {
		out = append(out, '$')
		out = strconv.AppendInt(out, int64(len(a)), 10)
		out = append(out, '\r', '\n')
		out = append(out, a...)
		out = append(out, '\r', '\n')
	}
	return out
}

// EncodeSimpleString renders "+<s>\r\n".
func EncodeSimpleString(s string) []byte {
	return append([]byte{'+'}, append([]byte(s), '\r', '\n')...)
}

// EncodeBulkString renders "$<len>\r\n<s>\r\n".
func EncodeBulkString(s string) []byte {
	out := []byte{'$'}
	out = strconv.AppendInt(out, int64(len(s)), 10)
	out = append(out, '\r', '\n')
	out = append(out, s...)
	out = append(out, '\r', '\n')
	return out
}
