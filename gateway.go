// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"log/slog"
	"net/http"

	gorpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/luxfi/objrpc/objerr"
	"github.com/luxfi/objrpc/params"
	"github.com/luxfi/objrpc/toolkit"
)

// RunArgs are the parameters of Toolkit.Run.
type RunArgs struct {
	Name   string      `json:"name"`
	Params *params.Bag `json:"params"`
}

type ListArgs struct{}

type ListReply struct {
	Toolkits []toolkit.Info `json:"toolkits"`
}

type DescribeArgs struct {
	Name string `json:"name"`
}

// ToolkitService is the JSON-RPC "Toolkit" service.
type ToolkitService struct {
	toolkits *toolkit.Registry
	log      *slog.Logger
}

// Run executes a toolkit. Toolkit failures come back in the reply with
// success false; only an unknown name is a JSON-RPC error.
func (s *ToolkitService) Run(r *http.Request, args *RunArgs, reply *toolkit.Response) error {
	resp, err := s.toolkits.Run(r.Context(), args.Name, args.Params)
	if err != nil {
		return jsonError(err)
	}
	if !resp.Success {
		s.log.Info("toolkit failed", "toolkit", args.Name, "message", resp.Message)
	}
	*reply = resp
	return nil
}

func (s *ToolkitService) List(_ *http.Request, _ *ListArgs, reply *ListReply) error {
	reply.Toolkits = s.toolkits.List()
	return nil
}

func (s *ToolkitService) Describe(_ *http.Request, args *DescribeArgs, reply *toolkit.Info) error {
	info, err := s.toolkits.Describe(args.Name)
	if err != nil {
		return jsonError(err)
	}
	*reply = info
	return nil
}

// jsonError carries the objerr kind name in the error data.
func jsonError(err error) *json2.Error {
	code := json2.E_SERVER
	if objerr.Is(err, objerr.UnknownToolkit) {
		code = json2.E_BAD_PARAMS
	}
	return &json2.Error{Code: code, Message: err.Error(), Data: objerr.KindOf(err).String()}
}

// NewGateway returns an HTTP handler serving the toolkits in r as the
// JSON-RPC 2.0 service "Toolkit".
func NewGateway(r *toolkit.Registry, log *slog.Logger) (http.Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	s := gorpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	if err := s.RegisterService(&ToolkitService{toolkits: r, log: log}, "Toolkit"); err != nil {
		return nil, err
	}
	return s, nil
}
