package bridge

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/hitsense/internal/core/observability/log"
	"github.com/zeusync/hitsense/pkg/generic"
)

// ALPN is the application protocol negotiated by the QUIC ingest.
const ALPN = "hitsense-ingest"

// scanBuffers backs the line scanners of ingest streams.
var scanBuffers = generic.NewPool(
	func() []byte { return make([]byte, 0, 64*1024) },
	func(b []byte) []byte { return b[:0] },
)

// QUICIngest receives engine frames over QUIC streams. Every stream carries
// newline-delimited JSON frames.
type QUICIngest struct {
	addr     string
	tlsConf  *tls.Config
	world    *World
	listener *quic.Listener
	logger   log.Log
}

// NewQUICIngest creates the ingest. A nil tlsConf uses a self-signed
// certificate.
func NewQUICIngest(addr string, tlsConf *tls.Config, world *World, logger log.Log) *QUICIngest {
	return &QUICIngest{
		addr:    addr,
		tlsConf: tlsConf,
		world:   world,
		logger:  logger.With(log.String("component", "bridge"), log.String("transport", "quic")),
	}
}

// Listen opens the UDP listener.
func (q *QUICIngest) Listen() error {
	tlsConf := q.tlsConf
	if tlsConf == nil {
		var err error
		if tlsConf, err = GenerateTLSConfig(); err != nil {
			return errors.Wrap(err, "failed to create TLS config")
		}
	}
	quicConf := &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
	ln, err := quic.ListenAddr(q.addr, tlsConf, quicConf)
	if err != nil {
		return errors.Wrap(err, "failed to start QUIC listener")
	}
	q.listener = ln
	q.logger.Info("QUIC ingest listening", log.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once listening.
func (q *QUICIngest) Addr() net.Addr {
	if q.listener == nil {
		return nil
	}
	return q.listener.Addr()
}

// Run listens if needed and serves until ctx is done.
func (q *QUICIngest) Run(ctx context.Context) error {
	if q.listener == nil {
		if err := q.Listen(); err != nil {
			return err
		}
	}
	defer q.listener.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return q.listener.Close()
	})
	g.Go(func() error {
		for {
			conn, err := q.listener.Accept(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return errors.Wrap(err, "QUIC accept failed")
			}
			g.Go(func() error {
				q.serveConn(gctx, conn)
				return nil
			})
		}
	})
	err := g.Wait()
	if errors.Is(err, quic.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (q *QUICIngest) serveConn(ctx context.Context, conn *quic.Conn) {
	logger := q.logger.With(log.String("remote", conn.RemoteAddr().String()))
	logger.Info("engine connected")
	defer func() {
		_ = conn.CloseWithError(0, "ingest closed")
		logger.Info("engine disconnected")
	}()

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			logger.Debug("stream accept ended", log.Error(err))
			return
		}
		go q.serveStream(logger, stream)
	}
}

func (q *QUICIngest) serveStream(logger log.Log, stream *quic.Stream) {
	defer stream.Close()
	buf := scanBuffers.Get()
	defer scanBuffers.Put(buf)

	sc := bufio.NewScanner(stream)
	sc.Buffer(buf, maxFrameSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ingest(q.world, logger, line)
	}
	if err := sc.Err(); err != nil {
		logger.Debug("stream closed", log.Error(err))
	}
}

// QUICSender pushes engine frames to a QUICIngest. It is what an engine
// plugin written in Go would use, and what the tests drive.
type QUICSender struct {
	conn   *quic.Conn
	stream *quic.Stream
	enc    *json.Encoder
}

// DialQUIC connects to a QUICIngest at addr.
func DialQUIC(ctx context.Context, addr string, tlsConf *tls.Config) (*QUICSender, error) {
	if tlsConf == nil {
		tlsConf = &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{ALPN},
		}
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, &quic.Config{MaxIdleTimeout: 30 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial QUIC ingest")
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "failed to open stream")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	return &QUICSender{conn: conn, stream: stream, enc: json.NewEncoder(stream)}, nil
}

// Send writes one frame followed by a newline.
func (s *QUICSender) Send(f EngineFrame) error {
	return errors.Wrap(s.enc.Encode(f), "failed to send frame")
}

// SendRaw writes an already encoded line, used to exercise malformed input.
func (s *QUICSender) SendRaw(line []byte) error {
	_, err := s.stream.Write(append(line, '\n'))
	return errors.Wrap(err, "failed to send frame")
}

func (s *QUICSender) Close() error {
	_ = s.stream.Close()
	return s.conn.CloseWithError(0, "sender closing")
}

// GenerateTLSConfig returns a self-signed TLS config for local ingest.
func GenerateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"hitsense"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:     []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create certificate")
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load key pair")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// LoadTLSConfig loads a certificate pair for the ingest.
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load TLS certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
