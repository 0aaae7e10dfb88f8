package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/alexbleotu/ferrumfix/internal/auth"
	"github.com/alexbleotu/ferrumfix/internal/observability"
	"github.com/alexbleotu/ferrumfix/internal/protocol"
	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

func (s *Inspector) RegisterRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":        true,
			"dictionaries": len(s.dec.Registry().IDs()),
			"service":      s.Name,
			"version":      version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/dictionaries", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"dictionaries": s.listDictionaries()})
	})

	r.GET("/dictionaries/:id/messages", func(c *gin.Context) {
		dict, ok := s.dec.Registry().Lookup(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "dictionary not found"})
			return
		}
		msgs := dict.Messages()
		out := make([]gin.H, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, gin.H{"type": m.Type, "name": m.Name, "category": m.Category})
		}
		c.JSON(http.StatusOK, gin.H{"dictionary": dict.ID, "messages": out})
	})

	r.GET("/dictionaries/:id/messages/:type", func(c *gin.Context) {
		dict, ok := s.dec.Registry().Lookup(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "dictionary not found"})
			return
		}
		def, ok := dict.Message(c.Param("type"))
		if !ok {
			def, ok = dict.MessageByName(c.Param("type"))
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "message type not found"})
			return
		}
		c.JSON(http.StatusOK, describeMessage(dict, def))
	})

	codec := r.Group("/")
	if s.guard != nil {
		codec.Use(auth.Require(s.guard))
	}
	codec.POST("/decode", s.handleDecode)
	codec.POST("/encode", s.handleEncode)
	codec.GET("/stream", s.handleStream)
}

type dictionaryInfo struct {
	ID          string `json:"id"`
	BeginString string `json:"begin_string"`
	Fields      int    `json:"fields"`
	Messages    int    `json:"messages"`
	MaxDepth    int    `json:"max_depth"`
}

func (s *Inspector) listDictionaries() []dictionaryInfo {
	reg := s.dec.Registry()
	ids := reg.IDs()
	out := make([]dictionaryInfo, 0, len(ids))
	for _, id := range ids {
		d, _ := reg.Lookup(id)
		out = append(out, dictionaryInfo{
			ID:          d.ID,
			BeginString: d.BeginString,
			Fields:      len(d.Fields()),
			Messages:    len(d.Messages()),
			MaxDepth:    d.MaxDepth(),
		})
	}
	return out
}

type entryInfo struct {
	Tag      int         `json:"tag"`
	Name     string      `json:"name"`
	Type     string      `json:"type,omitempty"`
	Required bool        `json:"required"`
	Group    []entryInfo `json:"group,omitempty"`
}

func describeMessage(dict *dictionary.Dictionary, def *dictionary.Message) gin.H {
	return gin.H{
		"dictionary": dict.ID,
		"type":       def.Type,
		"name":       def.Name,
		"category":   def.Category,
		"header":     describeLayout(dict, def.Header),
		"body":       describeLayout(dict, def.Body),
		"trailer":    describeLayout(dict, def.Trailer),
	}
}

func describeLayout(dict *dictionary.Dictionary, l *dictionary.Layout) []entryInfo {
	if l == nil {
		return nil
	}
	out := make([]entryInfo, 0, len(l.Entries))
	for _, e := range l.Entries {
		info := entryInfo{Tag: e.Tag, Name: e.Name, Required: e.Required}
		if f, ok := dict.Field(e.Tag); ok {
			info.Type = f.Type.String()
		}
		if e.Group != nil {
			info.Group = describeLayout(dict, e.Group.Layout)
		}
		out = append(out, info)
	}
	return out
}

type decodeFailure struct {
	Offset  int    `json:"offset"`
	Bytes   int    `json:"bytes"`
	Kind    string `json:"kind"`
	Tag     int    `json:"tag,omitempty"`
	MsgType string `json:"msg_type,omitempty"`
	Error   string `json:"error"`
	Fatal   bool   `json:"fatal,omitempty"`
}

type decodeResponse struct {
	Messages  []protocol.MessageMirror `json:"messages"`
	Errors    []decodeFailure          `json:"errors,omitempty"`
	Remaining int                      `json:"remaining"`
}

// handleDecode decodes every frame in the raw request body. Bytes after the
// last complete frame are reported as remaining.
func (s *Inspector) handleDecode(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	resp := decodeResponse{Messages: []protocol.MessageMirror{}}
	off := 0
	for off < len(body) {
		out := s.dec.TryDecode(body[off:])
		if out.Status == protocol.Incomplete {
			break
		}
		if out.Status == protocol.Complete {
			observability.RecordDecoded(out.Message.BeginString, out.Message.MsgType, out.Consumed)
			dict, _ := s.dec.DictionaryFor(out.Message)
			resp.Messages = append(resp.Messages, protocol.NewMirror(dict, out.Message))
			off += out.Consumed
			continue
		}
		observability.RecordDecodeError(out.Err.Kind.String())
		resp.Errors = append(resp.Errors, *failureOf(out.Err, off, out.Consumed))
		if out.Err.Fatal() {
			break
		}
		off += out.Consumed
	}
	resp.Remaining = len(body) - off

	status := http.StatusOK
	if len(resp.Messages) == 0 && len(resp.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, resp)
}

// handleEncode encodes a mirrored message. The dictionary query parameter
// picks the dictionary; otherwise it is resolved from the BeginString,
// MsgType and ApplVerID of the mirror.
func (s *Inspector) handleEncode(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBytes)
	var m protocol.MessageMirror
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dict, err := s.encodeDictionary(c.Query("dictionary"), m)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	enc, _ := s.dec.Encoder(dict.ID)

	msg, err := protocol.MirrorToMessage(dict, m)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	frame, err := enc.Encode(msg)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	observability.RecordEncoded(dict.BeginString, msg.MsgType, len(frame))
	c.JSON(http.StatusOK, gin.H{
		"dictionary": dict.ID,
		"msg_type":   msg.MsgType,
		"frame":      string(frame),
		"bytes":      len(frame),
	})
}

var errNoDictionary = errors.New("no dictionary for message")

func (s *Inspector) encodeDictionary(id string, m protocol.MessageMirror) (*dictionary.Dictionary, error) {
	if id != "" {
		if d, ok := s.dec.Registry().Lookup(id); ok {
			return d, nil
		}
		return nil, errNoDictionary
	}
	if m.BeginString == "" {
		return nil, errNoDictionary
	}
	return s.dec.Resolve(m.BeginString, m.MsgType, m.ApplVerID())
}
