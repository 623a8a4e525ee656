package wire

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/miekg/dns"
)

// headerFlagRD is the recursion-desired bit; harddns always asks upstream
// resolvers to recurse on its behalf, matching make_query's fixed flag word.
const headerFlagRD = 0x0100

// BuildQuery constructs a 12-byte DNS header followed by a single question
// section for fqdn/qtype, mirroring make_query in the original client. The
// transaction id is drawn from crypto/rand rather than a microsecond
// timestamp, which is the idiomatic Go source of the same "good enough,
// not attacker-predictable" property the original got from tv_usec.
func BuildQuery(fqdn string, qtype uint16) ([]byte, error) {
	name, err := EncodeName(fqdn)
	if err != nil {
		return nil, err
	}

	var idBuf [2]byte
	if _, err := rand.Read(idBuf[:]); err != nil {
		return nil, err
	}

	msg := make([]byte, 12, 12+len(name)+4)
	binary.BigEndian.PutUint16(msg[0:2], binary.BigEndian.Uint16(idBuf[:]))
	binary.BigEndian.PutUint16(msg[2:4], headerFlagRD)
	binary.BigEndian.PutUint16(msg[4:6], 1) // qdcount

	msg = append(msg, name...)

	var tail [4]byte
	binary.BigEndian.PutUint16(tail[0:2], qtype)
	binary.BigEndian.PutUint16(tail[2:4], dns.ClassINET)
	msg = append(msg, tail[:]...)

	return msg, nil
}

// QueryID extracts the transaction id from a raw DNS message header.
func QueryID(msg []byte) (uint16, error) {
	if len(msg) < 2 {
		return 0, errors.New("wire: message too short to contain an id")
	}
	return binary.BigEndian.Uint16(msg[0:2]), nil
}

// IsResponse reports whether the QR bit is set in a raw message header.
func IsResponse(msg []byte) (bool, error) {
	if len(msg) < 4 {
		return false, errors.New("wire: message too short to contain flags")
	}
	flags := binary.BigEndian.Uint16(msg[2:4])
	return flags&0x8000 != 0, nil
}

// QuestionCount and Opcode read the remaining fields proxy.go needs
// to validate an inbound query/answer without fully decoding it.
func QuestionCount(msg []byte) (uint16, error) {
	if len(msg) < 6 {
		return 0, errors.New("wire: message too short to contain qdcount")
	}
	return binary.BigEndian.Uint16(msg[4:6]), nil
}

func Opcode(msg []byte) (int, error) {
	if len(msg) < 4 {
		return 0, errors.New("wire: message too short to contain opcode")
	}
	flags := binary.BigEndian.Uint16(msg[2:4])
	return int((flags >> 11) & 0xf), nil
}
