// Package geyser implements the ingest feed on a Yellowstone gRPC
// (Geyser plugin) endpoint.
package geyser

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"solana-nft-indexer/internal/domain"
	"solana-nft-indexer/internal/ingest"
	"solana-nft-indexer/internal/solana"
)

// Options configures a Feed.
type Options struct {
	// Endpoint is host:port or an http(s) URL. https implies TLS.
	Endpoint string
	// XToken is sent as the x-token metadata header when set.
	XToken string
	// Insecure disables TLS regardless of the endpoint scheme.
	Insecure bool

	Commitment solana.Commitment

	// DialOptions are appended to the defaults, mainly for tests.
	DialOptions []grpc.DialOption

	Logger logrus.FieldLogger
}

// Feed implements ingest.Feed over a Geyser Subscribe stream.
type Feed struct {
	conn       *grpc.ClientConn
	client     pb.GeyserClient
	commitment pb.CommitmentLevel
	logger     logrus.FieldLogger
}

// Compile-time interface check.
var _ ingest.Feed = (*Feed)(nil)

// NewFeed creates a feed. The connection is established lazily by gRPC.
func NewFeed(opts Options) (*Feed, error) {
	target, useTLS, err := parseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}
	if opts.Insecure {
		useTLS = false
	}

	commitment, err := commitmentLevel(opts.Commitment)
	if err != nil {
		return nil, err
	}

	dialOpts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(1024 * 1024 * 1024)),
	}
	if useTLS {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if opts.XToken != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(tokenAuth{token: opts.XToken, secure: useTLS}))
	}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create geyser client: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Feed{
		conn:       conn,
		client:     pb.NewGeyserClient(conn),
		commitment: commitment,
		logger:     logger.WithField("component", "geyser"),
	}, nil
}

// Name implements ingest.Feed.
func (f *Feed) Name() string {
	return "geyser"
}

// Subscribe opens a Subscribe stream filtered to 82-byte token program
// accounts and sends the request.
func (f *Feed) Subscribe(ctx context.Context, fromSlot uint64) (ingest.Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	sub, err := f.client.Subscribe(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open subscribe stream: %w", err)
	}

	if err := sub.Send(BuildRequest(f.commitment, fromSlot)); err != nil {
		cancel()
		return nil, fmt.Errorf("send subscribe request: %w", err)
	}

	return &stream{sub: sub, cancel: cancel, logger: f.logger}, nil
}

// Close closes the underlying connection.
func (f *Feed) Close() error {
	return f.conn.Close()
}

// parseEndpoint accepts host:port, http://host:port or https://host[:port].
// Other schemes are passed to gRPC as target URIs.
func parseEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("geyser endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, false, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse geyser endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return endpoint, false, nil
	}

	useTLS := u.Scheme == "https"
	port := u.Port()
	if port == "" {
		port = "80"
		if useTLS {
			port = "443"
		}
	}
	return u.Hostname() + ":" + port, useTLS, nil
}

func commitmentLevel(c solana.Commitment) (pb.CommitmentLevel, error) {
	switch c {
	case solana.CommitmentProcessed:
		return pb.CommitmentLevel_PROCESSED, nil
	case solana.CommitmentConfirmed:
		return pb.CommitmentLevel_CONFIRMED, nil
	case solana.CommitmentFinalized, "":
		return pb.CommitmentLevel_FINALIZED, nil
	default:
		return 0, fmt.Errorf("unsupported commitment %q", c)
	}
}

// tokenAuth attaches the x-token header to every RPC.
type tokenAuth struct {
	token  string
	secure bool
}

func (a tokenAuth) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	return map[string]string{"x-token": a.token}, nil
}

func (a tokenAuth) RequireTransportSecurity() bool {
	return a.secure
}

// stream adapts a Geyser Subscribe stream to ingest.Stream.
type stream struct {
	sub    pb.Geyser_SubscribeClient
	cancel context.CancelFunc
	logger logrus.FieldLogger

	sendMu sync.Mutex
	pingID int32
}

// Recv returns the next translated update. Server pings are answered
// before being handed up so the connection stays open.
func (s *stream) Recv() (*domain.Envelope, error) {
	update, err := s.sub.Recv()
	if err != nil {
		return nil, err
	}

	env := Translate(update)
	if update.GetPing() != nil {
		s.pong()
	}
	return env, nil
}

func (s *stream) pong() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.pingID++
	err := s.sub.Send(&pb.SubscribeRequest{Ping: &pb.SubscribeRequestPing{Id: s.pingID}})
	if err != nil {
		s.logger.WithError(err).Warn("answer ping failed")
	}
}

func (s *stream) Close() error {
	err := s.sub.CloseSend()
	s.cancel()
	return err
}
