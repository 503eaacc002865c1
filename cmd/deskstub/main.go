// deskstub is a stand-in for the desktop task executor: it listens for one
// linked device, prints the pairing payload (and QR code) the app would scan,
// and answers task envelopes. Useful for development and manual testing.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	quic "github.com/quic-go/quic-go"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/sha3"

	"github.com/zelara-ai/app-mobile/internal/link"
	"github.com/zelara-ai/app-mobile/internal/pairing"
	"github.com/zelara-ai/app-mobile/internal/proto"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("deskstub", flag.ContinueOnError)
	port := fs.Int("port", 8737, "listen port")
	ips := fs.String("ips", "127.0.0.1", "comma-separated addresses to embed in the pairing payload")
	token := fs.String("token", "", "bearer token (random when empty)")
	scheme := fs.String("scheme", "zelara", "pairing payload scheme")
	noQR := fs.Bool("no-qr", false, "suppress the terminal QR code")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *token == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "token generation failed: %v\n", err)
			return 1
		}
		*token = hex.EncodeToString(buf)
	}

	payload := &pairing.Payload{Port: *port, Token: *token}
	for _, ip := range strings.Split(*ips, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			payload.Candidates = append(payload.Candidates, pairing.Candidate{Host: ip, Port: *port})
		}
	}
	if len(payload.Candidates) == 0 {
		fmt.Fprintln(os.Stderr, "no usable ip for the pairing payload")
		return 2
	}
	raw := payload.Encode(*scheme)
	fmt.Printf("pairing payload: %s\n", raw)
	if !*noQR {
		code, err := qrcode.New(raw, qrcode.Medium)
		if err != nil {
			fmt.Fprintf(os.Stderr, "qr encode failed: %v\n", err)
			return 1
		}
		fmt.Print(code.ToSmallString(false))
	}

	tlsConf, err := link.ServerTLSConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tls setup failed: %v\n", err)
		return 1
	}
	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(*port))
	listener, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen failed: %v\n", err)
		return 1
	}
	fmt.Printf("listening on %s\n", addr)

	for {
		conn, err := listener.Accept(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "accept failed: %v\n", err)
			return 1
		}
		fmt.Printf("device linked from %s\n", conn.RemoteAddr())
		go serveConn(conn, *token)
	}
}

func serveConn(conn *quic.Conn, token string) {
	defer conn.CloseWithError(0, "done")
	stream, err := conn.AcceptStream(context.Background())
	if err != nil {
		return
	}
	var counter int64
	for {
		raw, err := proto.ReadFrame(stream)
		if err != nil {
			fmt.Printf("device disconnected: %v\n", err)
			return
		}
		req, err := proto.DecodeTaskRequest(raw)
		if err != nil {
			fmt.Printf("dropping malformed request: %v\n", err)
			continue
		}
		resp := handleTask(req, token, &counter)
		data, err := proto.EncodeTaskResponse(resp)
		if err != nil {
			continue
		}
		if err := proto.WriteFrame(stream, data); err != nil {
			return
		}
	}
}

func handleTask(req proto.TaskRequest, token string, counter *int64) proto.TaskResponse {
	resp := proto.TaskResponse{
		TaskID:    req.TaskID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if got, _ := req.Payload["token"].(string); got != token {
		resp.Result = proto.ErrorResult("bad token")
		return resp
	}
	switch req.TaskType {
	case proto.TaskInversionTest:
		image, _ := req.Payload["image"].(string)
		decoded, err := base64.StdEncoding.DecodeString(image)
		if err != nil {
			resp.Result = proto.ErrorResult("image is not valid base64")
			return resp
		}
		for i := range decoded {
			decoded[i] = ^decoded[i]
		}
		resp.Success = true
		resp.Result = mustJSON(proto.InversionResult{InvertedImage: base64.StdEncoding.EncodeToString(decoded)})
	case proto.TaskImageValidation:
		image, _ := req.Payload["image"].(string)
		if image == "" {
			resp.Result = proto.ErrorResult("missing image")
			return resp
		}
		// Deterministic pseudo-classification from the image bytes.
		sum := sha3.Sum256([]byte(image))
		confidence := float64(sum[0]) / 255.0
		msg := "item looks recyclable"
		if confidence < 0.5 {
			msg = "low confidence, try better lighting"
		}
		resp.Success = true
		resp.Result = mustJSON(proto.ValidationResult{Confidence: confidence, Message: msg})
	case proto.TaskCounterUpdate:
		delta, _ := req.Payload["delta"].(float64)
		total := atomic.AddInt64(counter, int64(delta))
		resp.Success = true
		resp.Result = mustJSON(proto.CounterResult{Total: int(total)})
	default:
		resp.Result = proto.ErrorResult("unsupported task type " + req.TaskType)
	}
	return resp
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return proto.ErrorResult("internal encoding failure")
	}
	return data
}
