// Copyright (c) 2024 The alsanna authors. MIT License.

package ldaphandler

import (
	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// LDAPMessage ::= SEQUENCE { messageID INTEGER, protocolOp CHOICE {...}, controls [0] Controls OPTIONAL }
// ExtendedRequest  ::= [APPLICATION 23] SEQUENCE { requestName [0] LDAPOID, requestValue [1] OCTET STRING OPTIONAL }
// ExtendedResponse ::= [APPLICATION 24] SEQUENCE { COMPONENTS OF LDAPResult, responseName [10] LDAPOID OPTIONAL, responseValue [11] OCTET STRING OPTIONAL }
// LDAPResult       ::= SEQUENCE { resultCode ENUMERATED, matchedDN OCTET STRING, diagnosticMessage OCTET STRING, referral [3] Referral OPTIONAL }
//
// The application-tag and result-code constants come from go-ldap/ldap/v3
// itself rather than being re-declared here, even though this package
// decodes BER generically instead of through that library's LDAPMessage
// types.

// isStartTLSRequest reports whether pkt is an LDAPMessage carrying a
// StartTLS ExtendedRequest.
func isStartTLSRequest(pkt *ber.Packet) bool {
	op := protocolOp(pkt)
	if op == nil || op.ClassType != ber.ClassApplication || int(op.Tag) != ldap.ApplicationExtendedRequest {
		return false
	}
	return len(op.Children) > 0 && childOID(op.Children[0]) == startTLSOID
}

// isStartTLSSuccess reports whether pkt is an LDAPMessage carrying a
// successful StartTLS ExtendedResponse (resultCode success and
// responseName == the StartTLS OID).
func isStartTLSSuccess(pkt *ber.Packet) bool {
	op := protocolOp(pkt)
	if op == nil || op.ClassType != ber.ClassApplication || int(op.Tag) != ldap.ApplicationExtendedResponse {
		return false
	}
	if len(op.Children) == 0 || !isSuccessResultCode(op.Children[0]) {
		return false
	}
	for _, c := range op.Children {
		if c.ClassType == ber.ClassContext && int(c.Tag) == 10 { // responseName
			if childOID(c) == startTLSOID {
				return true
			}
		}
	}
	return false
}

// protocolOp returns the second child of the top-level LDAPMessage
// SEQUENCE (messageID is the first; controls, if present, trail).
func protocolOp(pkt *ber.Packet) *ber.Packet {
	if pkt == nil || len(pkt.Children) < 2 {
		return nil
	}
	return pkt.Children[1]
}

func childOID(p *ber.Packet) string {
	raw := rawBytes(p)
	if raw == nil {
		return ""
	}
	return string(raw)
}

func isSuccessResultCode(p *ber.Packet) bool {
	if p.ClassType != ber.ClassUniversal || p.Tag != ber.TagEnumerated {
		return false
	}
	return decodeBerInt(rawBytes(p)) == int64(ldap.LDAPResultSuccess)
}
