/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package ldap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"

	ber "github.com/go-asn1-ber/asn1-ber"
	goldap "github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/majewsky/femtoldap/internal/core"
	"github.com/majewsky/femtoldap/internal/database"
	"github.com/majewsky/femtoldap/internal/metrics"
)

// ClientHandler serves one client connection. The only per-connection state is
// the bound entry; the directory snapshot is re-read from the server for every
// message, so a reload takes effect between messages of the same connection.
type ClientHandler struct {
	conn     net.Conn
	reader   *bufio.Reader
	addr     string
	snapshot func() *database.Database
	bound    *core.Entry
}

// NewClientHandler prepares a handler for an accepted connection.
func NewClientHandler(conn net.Conn, snapshot func() *database.Database) *ClientHandler {
	return &ClientHandler{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		addr:     conn.RemoteAddr().String(),
		snapshot: snapshot,
	}
}

// Run processes messages until the client disconnects or a protocol error
// occurs. Codec errors terminate the connection; malformed request contents
// within well-formed messages only produce error responses.
func (h *ClientHandler) Run() error {
	defer h.conn.Close()
	for {
		msg, err := ReadMessage(h.reader)
		if err != nil {
			if isDisconnect(err) {
				log.Debug().Str("address", h.addr).Msg("Client disconnected")
				return nil
			}
			return fmt.Errorf("cannot read message: %w", err)
		}
		log.Debug().Str("address", h.addr).Int64("id", msg.ID).Msg("Handling message")

		switch op := msg.Op.(type) {
		case BindRequest:
			metrics.RequestsTotal.WithLabelValues("bind").Inc()
			err = h.handleBind(msg.ID, op)
		case UnbindRequest:
			metrics.RequestsTotal.WithLabelValues("unbind").Inc()
			h.bound = nil
		case SearchRequest:
			metrics.RequestsTotal.WithLabelValues("search").Inc()
			err = h.handleSearch(msg.ID, op)
		case UnsupportedRequest:
			metrics.RequestsTotal.WithLabelValues("unsupported").Inc()
			log.Warn().Str("address", h.addr).Int64("tag", int64(op.Tag)).Msg("Ignoring unsupported operation")
		}
		if err != nil {
			return err
		}
	}
}

func (h *ClientHandler) handleBind(msgID int64, req BindRequest) error {
	if req.IsSASL {
		log.Info().Str("address", h.addr).Str("dn", req.DN).Msg("Rejecting SASL bind")
		return h.send(encodeBindResponse(msgID, goldap.LDAPResultInvalidCredentials, req.DN, "SASL bind not supported"))
	}

	h.bound = nil
	dn, err := core.ParseDN(req.DN)
	if err != nil {
		log.Warn().Str("address", h.addr).Str("dn", req.DN).Err(err).Msg("Bind request with malformed DN")
		metrics.FailedBindsTotal.Inc()
		return h.send(encodeBindResponse(msgID, goldap.LDAPResultInvalidCredentials, req.DN, "Bind failed"))
	}

	entry := h.snapshot().Bind(dn, req.Password)
	if entry == nil {
		log.Info().Str("address", h.addr).Str("dn", dn.Display()).Msg("Login failed")
		metrics.FailedBindsTotal.Inc()
		return h.send(encodeBindResponse(msgID, goldap.LDAPResultInvalidCredentials, req.DN, "Bind failed"))
	}

	h.bound = entry
	log.Info().Str("address", h.addr).Str("dn", dn.Display()).Msg("Login successful")
	metrics.SuccessfulBindsTotal.Inc()
	return h.send(encodeBindResponse(msgID, goldap.LDAPResultSuccess, "", ""))
}

func (h *ClientHandler) handleSearch(msgID int64, req SearchRequest) error {
	db := h.snapshot()

	baseDN, err := core.ParseDN(req.BaseDN)
	if err != nil {
		log.Warn().Str("address", h.addr).Str("base", req.BaseDN).Err(err).Msg("Search request with malformed base DN")
		return h.send(encodeSearchResultDone(msgID, goldap.LDAPResultNoSuchObject, req.BaseDN))
	}
	log.Debug().Str("address", h.addr).Str("base", baseDN.Display()).Stringer("filter", req.Filter).Msg("Executing search")

	if !h.canSearchBase(baseDN) {
		return h.send(encodeSearchResultDone(msgID, goldap.LDAPResultInappropriateAuthentication, req.BaseDN))
	}

	found := db.Search(baseDN, req.Filter)
	visible := make([]*core.Entry, 0, len(found))
	for entry := range found {
		if h.canSeeEntry(entry) {
			visible = append(visible, entry)
		}
	}
	if len(visible) == 0 {
		return h.send(encodeSearchResultDone(msgID, goldap.LDAPResultNoSuchObject, req.BaseDN))
	}

	sort.Slice(visible, func(i, j int) bool {
		return visible[i].DN.String() < visible[j].DN.String()
	})
	for _, entry := range visible {
		err := h.send(encodeSearchResultEntry(msgID, entry.DN.String(), selectAttributes(entry, req.Attrs)))
		if err != nil {
			return err
		}
	}
	return h.send(encodeSearchResultDone(msgID, goldap.LDAPResultSuccess, req.BaseDN))
}

// canSearchBase gates the search as a whole. The Root DSE (empty base DN) is
// searchable by everyone, including anonymous connections; everything else
// requires a bound entry whose ACL reaches the base DN.
func (h *ClientHandler) canSearchBase(baseDN core.DN) bool {
	if baseDN.IsEmpty() {
		return true
	}
	if h.bound == nil {
		return false
	}
	if h.bound.ACL.CanAccessSelf && h.bound.DN.MatchesSuffix(baseDN) {
		return true
	}
	return h.bound.ACL.CanAccessDN(h.bound.DN, baseDN)
}

// canSeeEntry filters individual results. The Root DSE is visible to everyone;
// all other entries are checked against the bound entry's ACL.
func (h *ClientHandler) canSeeEntry(entry *core.Entry) bool {
	if entry.DN.IsEmpty() {
		return true
	}
	return h.bound != nil && h.bound.ACL.CanAccessDN(h.bound.DN, entry.DN)
}

// selectAttributes applies the attribute selection of the search request.
// Requested names match the stored spelling byte for byte.
func selectAttributes(entry *core.Entry, requested []string) []*core.Attribute {
	attrs := entry.Attributes.All()
	if len(requested) > 0 {
		names := make(map[string]struct{}, len(requested))
		for _, name := range requested {
			names[name] = struct{}{}
		}
		filtered := attrs[:0]
		for _, attr := range attrs {
			if _, ok := names[attr.Name]; ok {
				filtered = append(filtered, attr)
			}
		}
		attrs = filtered
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	return attrs
}

func (h *ClientHandler) send(packet *ber.Packet) error {
	_, err := h.conn.Write(packet.Bytes())
	if err != nil {
		return fmt.Errorf("cannot send response: %w", err)
	}
	return nil
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
