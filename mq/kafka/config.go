package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/IBM/sarama"

	"github.com/aisgo/ais-tenancy/mq"
)

var requiredAcks = map[string]sarama.RequiredAcks{
	"none":   sarama.NoResponse,
	"leader": sarama.WaitForLocal,
	"all":    sarama.WaitForAll,
	"":       sarama.WaitForAll,
}

var compressions = map[string]sarama.CompressionCodec{
	"":       sarama.CompressionNone,
	"none":   sarama.CompressionNone,
	"gzip":   sarama.CompressionGZIP,
	"snappy": sarama.CompressionSnappy,
	"lz4":    sarama.CompressionLZ4,
	"zstd":   sarama.CompressionZSTD,
}

// buildSaramaConfig 把 mq.Config 翻译为同步生产者所需的 sarama.Config
func buildSaramaConfig(cfg mq.Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid kafka version: %w", err)
		}
		sc.Version = v
	}

	pc := cfg.Producer
	acks, ok := requiredAcks[pc.RequiredAcks]
	if !ok {
		return nil, fmt.Errorf("unsupported required_acks %q", pc.RequiredAcks)
	}
	codec, ok := compressions[pc.Compression]
	if !ok {
		return nil, fmt.Errorf("unsupported compression %q", pc.Compression)
	}

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = acks
	sc.Producer.Compression = codec
	sc.Producer.Retry.Max = pc.RetryMax
	if pc.Timeout > 0 {
		sc.Producer.Timeout = pc.Timeout
	}
	if pc.MaxMessageBytes > 0 {
		sc.Producer.MaxMessageBytes = pc.MaxMessageBytes
	}
	// 同一标记重投不得产生重复记录
	if pc.Idempotent {
		sc.Producer.Idempotent = true
		sc.Producer.RequiredAcks = sarama.WaitForAll
		sc.Net.MaxOpenRequests = 1
		sc.Producer.Retry.Max = max(sc.Producer.Retry.Max, 1)
	}

	if err := applySASL(sc, cfg.SASL); err != nil {
		return nil, err
	}
	if cfg.TLS.Enable {
		tc, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("kafka tls: %w", err)
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tc
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func applySASL(sc *sarama.Config, cfg mq.SASLConfig) error {
	if !cfg.Enable {
		return nil
	}
	sc.Net.SASL.Enable = true
	sc.Net.SASL.User = cfg.Username
	sc.Net.SASL.Password = cfg.Password

	switch cfg.Mechanism {
	case "", "PLAIN":
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case "SCRAM-SHA-256":
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		sc.Net.SASL.SCRAMClientGeneratorFunc = newSCRAMClient(SHA256)
	case "SCRAM-SHA-512":
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		sc.Net.SASL.SCRAMClientGeneratorFunc = newSCRAMClient(SHA512)
	default:
		return fmt.Errorf("unsupported sasl mechanism %q", cfg.Mechanism)
	}
	return nil
}

func buildTLSConfig(cfg mq.TLSConfig) (*tls.Config, error) {
	tc := &tls.Config{InsecureSkipVerify: cfg.Insecure}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tc.RootCAs = pool
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}
