package kafka

import (
	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

/* ========================================================================
 * SCRAM 认证支持
 * ========================================================================
 * 职责: 为 sarama 提供 SCRAM-SHA-256 / SCRAM-SHA-512 客户端
 * ======================================================================== */

var (
	SHA256 scram.HashGeneratorFcn = scram.SHA256
	SHA512 scram.HashGeneratorFcn = scram.SHA512
)

// XDGSCRAMClient 基于 xdg-go/scram 的 sarama.SCRAMClient
type XDGSCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	HashGeneratorFcn scram.HashGeneratorFcn
}

func newSCRAMClient(fcn scram.HashGeneratorFcn) func() sarama.SCRAMClient {
	return func() sarama.SCRAMClient {
		return &XDGSCRAMClient{HashGeneratorFcn: fcn}
	}
}

// Begin 开始 SCRAM 认证
func (x *XDGSCRAMClient) Begin(userName, password, authzID string) error {
	client, err := x.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.Client = client
	x.ClientConversation = client.NewConversation()
	return nil
}

// Step 执行 SCRAM 认证步骤
func (x *XDGSCRAMClient) Step(challenge string) (string, error) {
	return x.ClientConversation.Step(challenge)
}

// Done 判断 SCRAM 认证是否完成
func (x *XDGSCRAMClient) Done() bool {
	return x.ClientConversation.Done()
}
