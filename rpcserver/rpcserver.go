// Package rpcserver implements the JSON-RPC serving boundary of the fee
// estimator: authenticated estimate and health commands over HTTP POST plus
// plain HTTP endpoints for health probes and prometheus metrics.
package rpcserver

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solsuite/feerd/feejson"
	"github.com/solsuite/feerd/feetracker"
	"github.com/solsuite/feerd/log"
	"github.com/solsuite/feerd/version"
)

const (
	// rpcAuthTimeoutSeconds is the number of seconds a connection to the
	// RPC server is allowed to stay open without authenticating before it
	// is closed.
	rpcAuthTimeoutSeconds = 10

	// rpcSemverString is the JSON-RPC API version reported by the version
	// command.
	rpcSemverMajor  = 1
	rpcSemverMinor  = 0
	rpcSemverPatch  = 0
	rpcSemverString = "1.0.0"

	// healthStaleAfter is the age of the last accepted window update beyond
	// which the health command reports the estimator as stale.
	healthStaleAfter = 30 * time.Second
)

// timeZeroVal is simply the zero value for a time.Time and is used to avoid
// creating multiple instances.
var timeZeroVal time.Time

// JSON 2.0 batched request prefix
var batchedRequestPrefix = []byte("[")

type commandHandler func(*Server, interface{}, <-chan struct{}) (interface{}, error)

// rpcHandlers maps RPC command strings to appropriate handler functions.
var rpcHandlers = map[string]commandHandler{
	"estimatefee":        handleEstimateFee,
	"estimatefeedetails": handleEstimateFeeDetails,
	"health":             handleHealth,
	"stop":               handleStop,
	"uptime":             handleUptime,
	"version":            handleVersion,
}

// Commands that are available to a limited user.
var rpcLimited = map[string]struct{}{
	"estimatefee":        {},
	"estimatefeedetails": {},
	"health":             {},
	"uptime":             {},
	"version":            {},
}

// Config is a descriptor containing the RPC server configuration.
type Config struct {
	// Listeners defines a slice of listeners for which the RPC server will
	// take ownership of and accept connections.  Since the RPC server
	// takes ownership of these listeners, they will be closed when the RPC
	// server is stopped.
	Listeners []net.Listener

	// StartupTime is the unix timestamp for when the process hosting the
	// RPC server started.
	StartupTime int64

	// Tracker supplies the fee window snapshots the estimate and health
	// commands are answered from.
	Tracker *feetracker.Tracker

	// RPCUser and RPCPass are the credentials for full access.
	RPCUser string
	RPCPass string

	// RPCLimitUser and RPCLimitPass are the credentials for users limited
	// to the read-only command set.
	RPCLimitUser string
	RPCLimitPass string

	// MaxClients caps the number of concurrent standard RPC connections.
	MaxClients int

	// Quirks mirrors the JSON-RPC quirk of responding to requests without
	// an id when no protocol version is indicated.
	Quirks bool
}

// Server provides a concurrent safe RPC server for the fee estimator.
type Server struct {
	started                int32
	shutdown               int32
	cfg                    Config
	authsha                [sha256.Size]byte
	limitauthsha           [sha256.Size]byte
	numClients             int32
	statusLines            map[int]string
	statusLock             sync.RWMutex
	wg                     sync.WaitGroup
	requestProcessShutdown chan struct{}
	quit                   chan int
}

// New returns a new instance of the Server struct.
func New(config *Config) (*Server, error) {
	rpc := Server{
		cfg:                    *config,
		statusLines:            make(map[int]string),
		requestProcessShutdown: make(chan struct{}),
		quit:                   make(chan int),
	}
	if config.RPCUser != "" && config.RPCPass != "" {
		login := config.RPCUser + ":" + config.RPCPass
		auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
		rpc.authsha = sha256.Sum256([]byte(auth))
	}
	if config.RPCLimitUser != "" && config.RPCLimitPass != "" {
		login := config.RPCLimitUser + ":" + config.RPCLimitPass
		auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
		rpc.limitauthsha = sha256.Sum256([]byte(auth))
	}

	return &rpc, nil
}

// internalRPCError is a convenience function to convert an internal error to
// an RPC error with the appropriate code set.  It also logs the error to the
// RPC server subsystem since internal errors really should not occur.  The
// context parameter is only used in the log message and may be empty if it's
// not needed.
func internalRPCError(errStr, context string) *feejson.RPCError {
	logStr := errStr
	if context != "" {
		logStr = context + ": " + errStr
	}
	log.RpcsLog.Error(logStr)
	return feejson.NewRPCError(feejson.ErrRPCInternal.Code, errStr)
}

// estimateRequestFromCmd converts the shared estimatefee command parameters
// into a tracker estimate request plus the snapshot lookback.
func estimateRequestFromCmd(accounts *[]string, lookbackSlots *uint64,
	includeVote *bool, percentiles *[]float64) (*feetracker.EstimateRequest, uint64) {

	req := &feetracker.EstimateRequest{}
	if accounts != nil {
		req.Accounts = *accounts
	}
	if includeVote != nil {
		req.IncludeVote = *includeVote
	}
	if percentiles != nil {
		req.Percentiles = *percentiles
	}

	var lookback uint64
	if lookbackSlots != nil {
		lookback = *lookbackSlots
	}
	return req, lookback
}

// estimateResultFromFee converts a tracker fee estimate into its JSON-RPC
// result form.
func estimateResultFromFee(est *feetracker.FeeEstimate) feejson.EstimateFeeResult {
	return feejson.EstimateFeeResult{
		Min:         est.Min,
		Low:         est.Low,
		Medium:      est.Medium,
		High:        est.High,
		VeryHigh:    est.VeryHigh,
		UnsafeMax:   est.UnsafeMax,
		Percentiles: est.Percentiles,
		SampleCount: est.SampleCount,
		FirstSlot:   est.FirstSlot,
		LastSlot:    est.LastSlot,
	}
}

// handleEstimateFee implements the estimatefee command.
func handleEstimateFee(s *Server, cmd interface{}, closeChan <-chan struct{}) (interface{}, error) {
	c := cmd.(*feejson.EstimateFeeCmd)

	req, lookback := estimateRequestFromCmd(c.Accounts, c.LookbackSlots,
		c.IncludeVote, c.Percentiles)

	snap := s.cfg.Tracker.Snapshot(lookback, req.Accounts)
	est := feetracker.Estimate(snap, req)
	result := estimateResultFromFee(est)
	return &result, nil
}

// handleEstimateFeeDetails implements the estimatefeedetails command.
func handleEstimateFeeDetails(s *Server, cmd interface{}, closeChan <-chan struct{}) (interface{}, error) {
	c := cmd.(*feejson.EstimateFeeDetailsCmd)

	req, lookback := estimateRequestFromCmd(c.Accounts, c.LookbackSlots,
		c.IncludeVote, nil)

	snap := s.cfg.Tracker.Snapshot(lookback, req.Accounts)
	est, scopes := feetracker.EstimateDetails(snap, req)

	result := feejson.EstimateFeeDetailsResult{
		Estimate: estimateResultFromFee(est),
		Scopes:   make(map[string]feejson.FeeScopeDetails, len(scopes)),
	}
	for name, stats := range scopes {
		result.Scopes[name] = feejson.FeeScopeDetails{
			Min:       stats.Min,
			Low:       stats.Low,
			Medium:    stats.Medium,
			High:      stats.High,
			VeryHigh:  stats.VeryHigh,
			UnsafeMax: stats.UnsafeMax,
			Mean:      stats.Mean,
			StdDev:    stats.StdDev,
			Skewness:  stats.Skewness,
			Count:     stats.Count,
		}
	}
	return &result, nil
}

// healthResult builds the health command result from the tracker state.
func (s *Server) healthResult() *feejson.HealthResult {
	maxSeen, haveSlots := s.cfg.Tracker.MaxSeenSlot()
	result := &feejson.HealthResult{
		MaxSeenSlot:      maxSeen,
		WindowSlots:      s.cfg.Tracker.Depth(),
		MaxLookbackSlots: s.cfg.Tracker.MaxLookbackSlots(),
		LastUpdateAge:    -1,
	}
	if !haveSlots {
		result.Status = "empty"
		return result
	}

	age := time.Since(s.cfg.Tracker.LastUpdate())
	result.LastUpdateAge = age.Seconds()
	if age > healthStaleAfter {
		result.Status = "stale"
	} else {
		result.Status = "ok"
	}
	return result
}

// handleHealth implements the health command.
func handleHealth(s *Server, cmd interface{}, closeChan <-chan struct{}) (interface{}, error) {
	return s.healthResult(), nil
}

// handleStop implements the stop command.
func handleStop(s *Server, cmd interface{}, closeChan <-chan struct{}) (interface{}, error) {
	select {
	case s.requestProcessShutdown <- struct{}{}:
	default:
	}
	return "feerd stopping.", nil
}

// handleUptime implements the uptime command.
func handleUptime(s *Server, cmd interface{}, closeChan <-chan struct{}) (interface{}, error) {
	return time.Now().Unix() - s.cfg.StartupTime, nil
}

// handleVersion implements the version command.
func handleVersion(s *Server, cmd interface{}, closeChan <-chan struct{}) (interface{}, error) {
	result := map[string]feejson.VersionResult{
		"feerdjsonrpcapi": {
			VersionString: rpcSemverString,
			Major:         rpcSemverMajor,
			Minor:         rpcSemverMinor,
			Patch:         rpcSemverPatch,
		},
		"feerd": {
			VersionString: version.String(),
			Major:         version.Major,
			Minor:         version.Minor,
			Patch:         version.Patch,
		},
	}
	return result, nil
}

// limitConnections responds with a 503 service unavailable and returns true if
// adding another client would exceed the maximum allow RPC clients.
//
// This function is safe for concurrent access.
func (s *Server) limitConnections(w http.ResponseWriter, remoteAddr string) bool {
	if int(atomic.LoadInt32(&s.numClients)+1) > s.cfg.MaxClients {
		log.RpcsLog.Infof("Max RPC clients exceeded [%d] - "+
			"disconnecting client %s", s.cfg.MaxClients,
			remoteAddr)
		http.Error(w, "503 Too busy.  Try again later.",
			http.StatusServiceUnavailable)
		return true
	}
	return false
}

// incrementClients adds one to the number of connected RPC clients.
//
// This function is safe for concurrent access.
func (s *Server) incrementClients() {
	atomic.AddInt32(&s.numClients, 1)
}

// decrementClients subtracts one from the number of connected RPC clients.
//
// This function is safe for concurrent access.
func (s *Server) decrementClients() {
	atomic.AddInt32(&s.numClients, -1)
}

// checkAuth checks the HTTP Basic authentication supplied by an RPC client in
// the HTTP request r.  If the supplied authentication does not match the
// username and password expected, a non-nil error is returned.
//
// This check is time-constant.
//
// The first bool return value signifies auth success (true if successful) and
// the second bool return value specifies whether the user can change the state
// of the server (true) or whether the user is limited (false).  The second is
// always false if the first is.
func (s *Server) checkAuth(r *http.Request, require bool) (bool, bool, error) {
	authhdr := r.Header["Authorization"]
	if len(authhdr) <= 0 {
		if require {
			log.RpcsLog.Warnf("RPC authentication failure from %s",
				r.RemoteAddr)
			return false, false, errors.New("auth failure")
		}

		return false, false, nil
	}

	authsha := sha256.Sum256([]byte(authhdr[0]))

	// Check for limited auth first as in environments with limited users,
	// those are probably expected to have a higher volume of calls
	limitcmp := subtle.ConstantTimeCompare(authsha[:], s.limitauthsha[:])
	if limitcmp == 1 {
		return true, false, nil
	}

	// Check for admin-level auth
	cmp := subtle.ConstantTimeCompare(authsha[:], s.authsha[:])
	if cmp == 1 {
		return true, true, nil
	}

	// Request's auth doesn't match either user
	log.RpcsLog.Warnf("RPC authentication failure from %s", r.RemoteAddr)
	return false, false, errors.New("auth failure")
}

// jsonAuthFail sends a message back to the client if the http auth is rejected.
func jsonAuthFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="feerd RPC"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}

// createMarshalledReply returns a new marshalled JSON-RPC response given the
// passed parameters.  It will automatically convert errors that are not of
// the type *feejson.RPCError to the appropriate type as needed.
func createMarshalledReply(rpcVersion feejson.RPCVersion, id interface{}, result interface{}, replyErr error) ([]byte, error) {
	var jsonErr *feejson.RPCError
	if replyErr != nil {
		if jErr, ok := replyErr.(*feejson.RPCError); ok {
			jsonErr = jErr
		} else {
			jsonErr = internalRPCError(replyErr.Error(), "")
		}
	}

	return feejson.MarshalResponse(rpcVersion, id, result, jsonErr)
}

// parsedRPCCmd represents a JSON-RPC request object that has been parsed into
// a known concrete command along with any error that might have happened while
// parsing it.
type parsedRPCCmd struct {
	jsonrpc feejson.RPCVersion
	id      interface{}
	method  string
	cmd     interface{}
	err     *feejson.RPCError
}

// parseCmd parses a JSON-RPC request object into known concrete command.  The
// err field of the returned parsedRPCCmd struct will contain an RPC error that
// is suitable for use in replies if the command is invalid in some way such as
// an unregistered command or invalid parameters.
func parseCmd(request *feejson.Request) *parsedRPCCmd {
	parsedCmd := parsedRPCCmd{
		jsonrpc: request.Jsonrpc,
		id:      request.ID,
		method:  request.Method,
	}

	cmd, err := feejson.UnmarshalCmd(request)
	if err != nil {
		// When the error is because the method is not registered,
		// produce a method not found RPC error.
		if jerr, ok := err.(feejson.Error); ok &&
			jerr.ErrorCode == feejson.ErrUnregisteredMethod {

			parsedCmd.err = feejson.ErrRPCMethodNotFound
			return &parsedCmd
		}

		// Otherwise, some type of invalid parameters is the
		// cause, so produce the equivalent RPC error.
		parsedCmd.err = feejson.NewRPCError(
			feejson.ErrRPCInvalidParams.Code, err.Error())
		return &parsedCmd
	}

	parsedCmd.cmd = cmd
	return &parsedCmd
}

// standardCmdResult checks that a parsed command is a standard JSON-RPC
// command for this server and runs the appropriate handler to reply to the
// command.  Any commands which are not recognized will return an error
// suitable for use in replies.
func (s *Server) standardCmdResult(cmd *parsedRPCCmd, closeChan <-chan struct{}) (interface{}, error) {
	handler, ok := rpcHandlers[cmd.method]
	if !ok {
		return nil, feejson.ErrRPCMethodNotFound
	}

	return handler(s, cmd.cmd, closeChan)
}

// processRequest determines the incoming request type (single or batched),
// parses it and returns a marshalled response.
func (s *Server) processRequest(request *feejson.Request, isAdmin bool, closeChan <-chan struct{}) []byte {
	var result interface{}
	var err error
	var jsonErr *feejson.RPCError

	if !isAdmin {
		if _, ok := rpcLimited[request.Method]; !ok {
			jsonErr = internalRPCError("limited user not "+
				"authorized for this method", "")
		}
	}

	if jsonErr == nil {
		if request.Method == "" || request.Params == nil {
			jsonErr = &feejson.RPCError{
				Code:    feejson.ErrRPCInvalidRequest.Code,
				Message: "Invalid request: malformed",
			}
			msg, err := createMarshalledReply(request.Jsonrpc, request.ID, result, jsonErr)
			if err != nil {
				log.RpcsLog.Errorf("Failed to marshal reply: %v", err)
				return nil
			}
			return msg
		}

		// Valid requests with no ID (notifications) must not have a
		// response per the JSON-RPC spec.
		if request.ID == nil {
			return nil
		}

		// Attempt to parse the JSON-RPC request into a known concrete
		// command.
		parsedCmd := parseCmd(request)
		if parsedCmd.err != nil {
			jsonErr = parsedCmd.err
		} else {
			result, err = s.standardCmdResult(parsedCmd, closeChan)
			if err != nil {
				if rpcErr, ok := err.(*feejson.RPCError); ok {
					jsonErr = rpcErr
				} else {
					jsonErr = &feejson.RPCError{
						Code:    feejson.ErrRPCInvalidRequest.Code,
						Message: "Invalid request: malformed",
					}
				}
			}
		}
	}

	// Marshal the response.
	msg, err := createMarshalledReply(request.Jsonrpc, request.ID, result, jsonErr)
	if err != nil {
		log.RpcsLog.Errorf("Failed to marshal reply: %v", err)
		return nil
	}
	return msg
}

// httpStatusLine returns a response Status-Line (RFC 2616 Section 6.1)
// for the given request and response status code.  This function was lifted and
// adapted from the standard library HTTP server code since it's not exported.
func (s *Server) httpStatusLine(req *http.Request, code int) string {
	// Fast path:
	key := code
	proto11 := req.ProtoAtLeast(1, 1)
	if !proto11 {
		key = -key
	}
	s.statusLock.RLock()
	line, ok := s.statusLines[key]
	s.statusLock.RUnlock()
	if ok {
		return line
	}

	// Slow path:
	proto := "HTTP/1.0"
	if proto11 {
		proto = "HTTP/1.1"
	}
	codeStr := strconv.Itoa(code)
	text := http.StatusText(code)
	if text != "" {
		line = proto + " " + codeStr + " " + text + "\r\n"
		s.statusLock.Lock()
		s.statusLines[key] = line
		s.statusLock.Unlock()
	} else {
		text = "status code " + codeStr
		line = proto + " " + codeStr + " " + text + "\r\n"
	}

	return line
}

// writeHTTPResponseHeaders writes the necessary response headers prior to
// writing an HTTP body given a request to use for protocol negotiation, headers
// to write, a status code, and a writer.
func (s *Server) writeHTTPResponseHeaders(req *http.Request, headers http.Header, code int, w io.Writer) error {
	_, err := io.WriteString(w, s.httpStatusLine(req, code))
	if err != nil {
		return err
	}

	err = headers.Write(w)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, "\r\n")
	return err
}

// jsonRPCRead handles reading and responding to RPC messages.
func (s *Server) jsonRPCRead(w http.ResponseWriter, r *http.Request, isAdmin bool) {
	if atomic.LoadInt32(&s.shutdown) != 0 {
		return
	}

	// Read and close the JSON-RPC request body from the caller.
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		errCode := http.StatusBadRequest
		http.Error(w, fmt.Sprintf("%d error reading JSON message: %v",
			errCode, err), errCode)
		return
	}

	// Unfortunately, the http server doesn't provide the ability to
	// change the read deadline for the new connection and having one breaks
	// long polling.  However, not having a read deadline on the initial
	// connection would mean clients can connect and idle forever.  Thus,
	// hijack the connecton from the HTTP server, clear the read deadline,
	// and handle writing the response manually.
	hj, ok := w.(http.Hijacker)
	if !ok {
		errMsg := "webserver doesn't support hijacking"
		log.RpcsLog.Warnf(errMsg)
		errCode := http.StatusInternalServerError
		http.Error(w, strconv.Itoa(errCode)+" "+errMsg, errCode)
		return
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		log.RpcsLog.Warnf("Failed to hijack HTTP connection: %v", err)
		errCode := http.StatusInternalServerError
		http.Error(w, strconv.Itoa(errCode)+" "+err.Error(), errCode)
		return
	}
	defer conn.Close()
	defer buf.Flush()
	conn.SetReadDeadline(timeZeroVal)

	// Attempt to parse the raw body into a JSON-RPC request.
	// Setup a close notifier.  Since the connection is hijacked,
	// the CloseNotifer on the ResponseWriter is not available.
	closeChan := make(chan struct{}, 1)
	go func() {
		_, err = conn.Read(make([]byte, 1))
		if err != nil {
			close(closeChan)
		}
	}()

	var results []json.RawMessage
	var batchSize int
	var batchedRequest bool

	// Determine request type
	if bytes.HasPrefix(body, batchedRequestPrefix) {
		batchedRequest = true
	}

	// Process a single request
	if !batchedRequest {
		var req feejson.Request
		var resp json.RawMessage
		err = json.Unmarshal(body, &req)
		if err != nil {
			jsonErr := &feejson.RPCError{
				Code: feejson.ErrRPCParse.Code,
				Message: fmt.Sprintf("Failed to parse request: %v",
					err),
			}
			resp, err = feejson.MarshalResponse(feejson.RpcVersion1, nil, nil, jsonErr)
			if err != nil {
				log.RpcsLog.Errorf("Failed to create reply: %v", err)
			}
		}

		if err == nil {
			// The JSON-RPC 1.0 spec defines that notifications must have their "id"
			// set to null and states that notifications do not have a response.
			//
			// A JSON-RPC 2.0 notification is a request with "json-rpc":"2.0", and
			// without an "id" member. The specification states that notifications
			// must not be responded to. JSON-RPC 2.0 permits the null value as a
			// valid request id, therefore such requests are not notifications.
			//
			// feerd does not respond to any request without an "id" or "id":null,
			// regardless the indicated JSON-RPC protocol version unless RPC quirks
			// are enabled. With RPC quirks enabled, such requests will be responded
			// to if the reqeust does not indicate JSON-RPC version.
			if req.ID == nil && !(s.cfg.Quirks && req.Jsonrpc == "") {
				return
			}
			resp = s.processRequest(&req, isAdmin, closeChan)
		}

		if resp != nil {
			results = append(results, resp)
		}
	}

	// Process a batched request
	if batchedRequest {
		var batchedRequests []interface{}
		var resp json.RawMessage
		err = json.Unmarshal(body, &batchedRequests)
		if err != nil {
			jsonErr := &feejson.RPCError{
				Code: feejson.ErrRPCParse.Code,
				Message: fmt.Sprintf("Failed to parse request: %v",
					err),
			}
			resp, err = feejson.MarshalResponse(feejson.RpcVersion2, nil, nil, jsonErr)
			if err != nil {
				log.RpcsLog.Errorf("Failed to create reply: %v", err)
			}

			if resp != nil {
				results = append(results, resp)
			}
		}

		if err == nil {
			// Response with an empty batch error if the batch size is zero
			if len(batchedRequests) == 0 {
				jsonErr := &feejson.RPCError{
					Code:    feejson.ErrRPCInvalidRequest.Code,
					Message: "Invalid request: empty batch",
				}
				resp, err = feejson.MarshalResponse(feejson.RpcVersion2, nil, nil, jsonErr)
				if err != nil {
					log.RpcsLog.Errorf("Failed to marshal reply: %v", err)
				}

				if resp != nil {
					results = append(results, resp)
				}
			}

			// Process each batch entry individually
			if len(batchedRequests) > 0 {
				batchSize = len(batchedRequests)

				for _, entry := range batchedRequests {
					var reqBytes []byte
					reqBytes, err = json.Marshal(entry)
					if err != nil {
						jsonErr := &feejson.RPCError{
							Code: feejson.ErrRPCInvalidRequest.Code,
							Message: fmt.Sprintf("Invalid request: %v",
								err),
						}
						resp, err = feejson.MarshalResponse(feejson.RpcVersion2, nil, nil, jsonErr)
						if err != nil {
							log.RpcsLog.Errorf("Failed to create reply: %v", err)
						}

						if resp != nil {
							results = append(results, resp)
						}
						continue
					}

					var req feejson.Request
					err := json.Unmarshal(reqBytes, &req)
					if err != nil {
						jsonErr := &feejson.RPCError{
							Code: feejson.ErrRPCInvalidRequest.Code,
							Message: fmt.Sprintf("Invalid request: %v",
								err),
						}
						resp, err = feejson.MarshalResponse(feejson.RpcVersion2, nil, nil, jsonErr)
						if err != nil {
							log.RpcsLog.Errorf("Failed to create reply: %v", err)
						}

						if resp != nil {
							results = append(results, resp)
						}
						continue
					}

					resp = s.processRequest(&req, isAdmin, closeChan)
					if resp != nil {
						results = append(results, resp)
					}
				}
			}
		}
	}

	var msg = []byte{}
	if batchedRequest && batchSize > 0 {
		if len(results) > 0 {
			// Form the batched response json
			var buffer bytes.Buffer
			buffer.WriteByte('[')
			for idx, reply := range results {
				if idx == len(results)-1 {
					buffer.Write(reply)
					buffer.WriteByte(']')
					break
				}
				buffer.Write(reply)
				buffer.WriteByte(',')
			}
			msg = buffer.Bytes()
		}
	}

	if !batchedRequest || batchSize == 0 {
		// Respond with the first results entry for single requests
		if len(results) > 0 {
			msg = results[0]
		}
	}

	// Write the response.
	err = s.writeHTTPResponseHeaders(r, w.Header(), http.StatusOK, buf)
	if err != nil {
		log.RpcsLog.Error(err)
		return
	}
	if _, err := buf.Write(msg); err != nil {
		log.RpcsLog.Errorf("Failed to write marshalled reply: %v", err)
	}

	// Terminate with newline to maintain compatibility with other JSON-RPC
	// servers.
	if err := buf.WriteByte('\n'); err != nil {
		log.RpcsLog.Errorf("Failed to append terminating newline to reply: %v", err)
	}
}

// handleHealthHTTP serves the unauthenticated GET /health probe endpoint.  It
// reports 200 while the window is fresh and 503 when the estimator has no
// data or has stopped receiving it.
func (s *Server) handleHealthHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "405 Method Not Allowed.", http.StatusMethodNotAllowed)
		return
	}

	result := s.healthResult()
	code := http.StatusOK
	if result.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.RpcsLog.Errorf("Failed to write health reply: %v", err)
	}
}

// Start is used to start the rpc listeners.
func (s *Server) Start() {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return
	}
	log.RpcsLog.Trace("Starting RPC server")
	rpcServeMux := http.NewServeMux()
	httpServer := &http.Server{
		Handler: rpcServeMux,

		// Timeout connections which don't complete the initial
		// handshake within the allowed timeframe.
		ReadTimeout: time.Second * rpcAuthTimeoutSeconds,
	}
	rpcServeMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Type", "application/json")
		r.Close = true

		// Limit the number of connections to max allowed.
		if s.limitConnections(w, r.RemoteAddr) {
			return
		}

		// Keep track of the number of connected clients.
		s.incrementClients()
		defer s.decrementClients()
		_, isAdmin, err := s.checkAuth(r, true)
		if err != nil {
			jsonAuthFail(w)
			return
		}

		// Read and respond to the request.
		s.jsonRPCRead(w, r, isAdmin)
	})

	// Unauthenticated probe and metrics endpoints.
	rpcServeMux.HandleFunc("/health", s.handleHealthHTTP)
	rpcServeMux.Handle("/metrics", promhttp.Handler())

	for _, listener := range s.cfg.Listeners {
		s.wg.Add(1)
		go func(listener net.Listener) {
			log.RpcsLog.Infof("RPC server listening on %s", listener.Addr())
			httpServer.Serve(listener)
			log.RpcsLog.Infof("RPC listener done for %s", listener.Addr())
			s.wg.Done()
		}(listener)
	}
}

// GenCertPair generates a key/cert pair to the paths provided.
func GenCertPair(certFile, keyFile string) error {
	log.RpcsLog.Infof("Generating TLS certificates...")

	org := "feerd autogenerated cert"
	validUntil := time.Now().Add(10 * 365 * 24 * time.Hour)
	cert, key, err := btcutil.NewTLSCertPair(org, validUntil, nil)
	if err != nil {
		return err
	}

	// Write cert and key files.
	if err = os.WriteFile(certFile, cert, 0666); err != nil {
		return err
	}
	if err = os.WriteFile(keyFile, key, 0600); err != nil {
		os.Remove(certFile)
		return err
	}

	log.RpcsLog.Infof("Done generating TLS certificates")
	return nil
}

// RequestedProcessShutdown returns a channel that is sent to when an authorized
// RPC client requests the process to shutdown.  If the request can not be read
// immediately, it is dropped.
func (s *Server) RequestedProcessShutdown() <-chan struct{} {
	return s.requestProcessShutdown
}

// Stop is used to stop the rpc listeners.
func (s *Server) Stop() error {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		log.RpcsLog.Infof("RPC server is already in the process of shutting down")
		return nil
	}
	log.RpcsLog.Warnf("RPC server shutting down")
	for _, listener := range s.cfg.Listeners {
		err := listener.Close()
		if err != nil {
			log.RpcsLog.Errorf("Problem shutting down rpc: %v", err)
			return err
		}
	}
	close(s.quit)
	s.wg.Wait()
	log.RpcsLog.Infof("RPC server shutdown complete")
	return nil
}
