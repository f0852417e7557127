/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package ldap speaks the server side of a subset of LDAPv3: bind, unbind and
// search, over plain TCP and TLS. Messages are BER-encoded per RFC 4511; the
// envelope and filter decoding is built on go-asn1-ber, with the protocol
// constants from go-ldap.
package ldap

import (
	"errors"
	"fmt"
	"io"

	ber "github.com/go-asn1-ber/asn1-ber"
	goldap "github.com/go-ldap/ldap/v3"

	"github.com/majewsky/femtoldap/internal/core"
)

// MaxMessageSize is the ceiling for a single inbound LDAP message.
const MaxMessageSize = 1 * 1024 * 1024

func init() {
	ber.MaxPacketLengthBytes = MaxMessageSize
}

// Message is one decoded LDAP request envelope.
type Message struct {
	ID int64
	// Op is one of BindRequest, UnbindRequest, SearchRequest or
	// UnsupportedRequest.
	Op any
}

// BindRequest asks to authenticate as DN.
type BindRequest struct {
	DN       string
	Password []byte
	// IsSASL is set when the client sent SASL credentials, which this server
	// rejects.
	IsSASL bool
}

// UnbindRequest resets the connection to anonymous. It has no response.
type UnbindRequest struct{}

// SearchRequest asks for all entries below BaseDN matching Filter.
type SearchRequest struct {
	BaseDN string
	// Scope is decoded but not honored: the effective scope is base-object
	// when BaseDN names an entry, and whole-subtree otherwise.
	Scope  int64
	Filter core.Filter
	// Attrs restricts the returned attributes; empty means all.
	Attrs []string
}

// UnsupportedRequest is any operation this server does not implement.
// It elicits no response.
type UnsupportedRequest struct {
	Tag ber.Tag
}

var errInvalidMessage = errors.New("invalid LDAP message")

// ReadMessage reads and decodes the next request from the wire.
func ReadMessage(r io.Reader) (*Message, error) {
	packet, err := ber.ReadPacket(r)
	if err != nil {
		return nil, err
	}
	if packet.ClassType != ber.ClassUniversal || packet.TagType != ber.TypeConstructed ||
		packet.Tag != ber.TagSequence || len(packet.Children) < 2 {
		return nil, errInvalidMessage
	}

	msgID, ok := packet.Children[0].Value.(int64)
	if !ok {
		return nil, errInvalidMessage
	}
	op := packet.Children[1]
	if op.ClassType != ber.ClassApplication {
		return nil, errInvalidMessage
	}

	msg := Message{ID: msgID}
	switch int(op.Tag) {
	case goldap.ApplicationBindRequest:
		req, err := decodeBindRequest(op)
		if err != nil {
			return nil, err
		}
		msg.Op = req
	case goldap.ApplicationUnbindRequest:
		msg.Op = UnbindRequest{}
	case goldap.ApplicationSearchRequest:
		req, err := decodeSearchRequest(op)
		if err != nil {
			return nil, err
		}
		msg.Op = req
	default:
		msg.Op = UnsupportedRequest{Tag: op.Tag}
	}
	return &msg, nil
}

func decodeBindRequest(op *ber.Packet) (BindRequest, error) {
	if len(op.Children) < 3 {
		return BindRequest{}, fmt.Errorf("%w: truncated bind request", errInvalidMessage)
	}
	req := BindRequest{DN: packetString(op.Children[1])}
	auth := op.Children[2]
	if auth.ClassType == ber.ClassContext && auth.Tag == 0 {
		req.Password = auth.Data.Bytes()
	} else {
		req.IsSASL = true
	}
	return req, nil
}

func decodeSearchRequest(op *ber.Packet) (SearchRequest, error) {
	if len(op.Children) < 8 {
		return SearchRequest{}, fmt.Errorf("%w: truncated search request", errInvalidMessage)
	}
	scope, _ := op.Children[1].Value.(int64)
	req := SearchRequest{
		BaseDN: packetString(op.Children[0]),
		Scope:  scope,
		Filter: decodeFilter(op.Children[6]),
	}
	for _, attr := range op.Children[7].Children {
		req.Attrs = append(req.Attrs, packetString(attr))
	}
	return req, nil
}

// decodeFilter turns the BER filter tree into the internal filter AST.
// Unknown filter types become FilterUnsupported nodes, which never match.
func decodeFilter(p *ber.Packet) core.Filter {
	if p.ClassType != ber.ClassContext {
		return core.Filter{Kind: core.FilterUnsupported}
	}
	switch int(p.Tag) {
	case goldap.FilterAnd, goldap.FilterOr:
		kind := core.FilterAnd
		if int(p.Tag) == goldap.FilterOr {
			kind = core.FilterOr
		}
		children := make([]core.Filter, 0, len(p.Children))
		for _, child := range p.Children {
			children = append(children, decodeFilter(child))
		}
		return core.Filter{Kind: kind, Children: children}
	case goldap.FilterNot:
		if len(p.Children) != 1 {
			return core.Filter{Kind: core.FilterUnsupported}
		}
		return core.Filter{Kind: core.FilterNot, Children: []core.Filter{decodeFilter(p.Children[0])}}
	case goldap.FilterEqualityMatch:
		if len(p.Children) != 2 {
			return core.Filter{Kind: core.FilterUnsupported}
		}
		return core.Filter{
			Kind:  core.FilterEquality,
			Attr:  packetString(p.Children[0]),
			Value: packetBytes(p.Children[1]),
		}
	case goldap.FilterPresent:
		return core.Filter{Kind: core.FilterPresent, Attr: p.Data.String()}
	case goldap.FilterSubstrings:
		if len(p.Children) != 2 {
			return core.Filter{Kind: core.FilterUnsupported}
		}
		filter := core.Filter{Kind: core.FilterSubstrings, Attr: packetString(p.Children[0])}
		for _, sub := range p.Children[1].Children {
			fragment := sub.Data.String()
			switch int(sub.Tag) {
			case goldap.FilterSubstringsInitial:
				filter.Initial = fragment
			case goldap.FilterSubstringsAny:
				filter.Any = append(filter.Any, fragment)
			case goldap.FilterSubstringsFinal:
				filter.Final = fragment
			}
		}
		return filter
	default:
		return core.Filter{Kind: core.FilterUnsupported}
	}
}

func packetString(p *ber.Packet) string {
	if s, ok := p.Value.(string); ok {
		return s
	}
	return p.Data.String()
}

func packetBytes(p *ber.Packet) []byte {
	if s, ok := p.Value.(string); ok {
		return []byte(s)
	}
	return p.Data.Bytes()
}

// The encoders below build the three response shapes this server sends.

func newMessagePacket(msgID int64) *ber.Packet {
	packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAP Message")
	packet.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, msgID, "Message ID"))
	return packet
}

// encodeResult renders a BindResponse or SearchResultDone (both share the
// LDAPResult shape).
func encodeResult(msgID int64, appTag ber.Tag, code int, matchedDN, diagnostic string) *ber.Packet {
	packet := newMessagePacket(msgID)
	result := ber.Encode(ber.ClassApplication, ber.TypeConstructed, appTag, nil, "Result")
	result.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(code), "Result Code"))
	result.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, matchedDN, "Matched DN"))
	result.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, diagnostic, "Diagnostic Message"))
	packet.AppendChild(result)
	return packet
}

func encodeBindResponse(msgID int64, code int, matchedDN, diagnostic string) *ber.Packet {
	return encodeResult(msgID, ber.Tag(goldap.ApplicationBindResponse), code, matchedDN, diagnostic)
}

func encodeSearchResultDone(msgID int64, code int, matchedDN string) *ber.Packet {
	return encodeResult(msgID, ber.Tag(goldap.ApplicationSearchResultDone), code, matchedDN, "")
}

func encodeSearchResultEntry(msgID int64, dn string, attrs []*core.Attribute) *ber.Packet {
	packet := newMessagePacket(msgID)
	entry := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ber.Tag(goldap.ApplicationSearchResultEntry), nil, "Search Result Entry")
	entry.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, dn, "Object Name"))
	attrList := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attributes")
	for _, attr := range attrs {
		attrPacket := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attribute")
		attrPacket.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr.Name, "Attribute Type"))
		values := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "Attribute Values")
		for _, value := range attr.Values {
			values.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(value), "Attribute Value"))
		}
		attrPacket.AppendChild(values)
		attrList.AppendChild(attrPacket)
	}
	entry.AppendChild(attrList)
	packet.AppendChild(entry)
	return packet
}
