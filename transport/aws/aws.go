// Package aws publishes events to an AWS SNS topic.
package aws

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/faultline/transport"
	"github.com/drblury/faultline/transport/pubsub"
)

// TransportName is the name used to register this transport.
const TransportName = "aws"

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// TopicResolverFactory allows overriding the topic resolver creation for testing.
var TopicResolverFactory = sns.NewGenerateArnTopicResolver

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return sns.NewPublisher(cfg, logger)
}

func init() {
	Register()
}

// Register registers the AWS transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.AWSCapabilities)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.AWSCapabilities
}

// settings is the AWS slice of the transport config after cleanup.
type settings struct {
	region    string
	accountID string
	accessKey string
	secretKey string
	endpoint  *url.URL
}

func readSettings(cfg transport.Config) (settings, error) {
	s := settings{
		region:    strings.TrimSpace(cfg.GetAWSRegion()),
		accountID: strings.Trim(cfg.GetAWSAccountID(), "\"' "),
		accessKey: cfg.GetAWSAccessKeyID(),
		secretKey: cfg.GetAWSSecretAccessKey(),
	}
	if raw := cfg.GetAWSEndpoint(); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return settings{}, fmt.Errorf("parse AWS endpoint: %w", err)
		}
		s.endpoint = u
	}
	return s, nil
}

func (s settings) loadOptions() []func(*awsconfig.LoadOptions) error {
	var opts []func(*awsconfig.LoadOptions) error
	if s.region != "" {
		opts = append(opts, awsconfig.WithRegion(s.region))
	}
	if s.accessKey != "" && s.secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(s.accessKey, s.secretKey, "")),
		))
	}
	return opts
}

// resolve fills the region from the loaded AWS config and substitutes the
// LocalStack account when a custom endpoint is used without a real account.
func (s settings) resolve(loaded aws.Config, logger watermill.LoggerAdapter) settings {
	if s.region == "" {
		s.region = loaded.Region
	}
	if s.endpoint != nil && len(s.accountID) != awsAccountIDLength {
		if s.accountID != "" {
			logger.Info("Invalid AWS account ID; falling back to LocalStack default", watermill.LogFields{"account_id": s.accountID})
		}
		s.accountID = localstackAccountID
	}
	return s
}

// Build creates a new SNS transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	s, err := readSettings(cfg)
	if err != nil {
		return nil, err
	}

	loaded, err := DefaultConfigLoader(ctx, s.loadOptions()...)
	if err != nil {
		logger.Error("Failed to load AWS config", err, watermill.LogFields{"region": s.region})
		return nil, err
	}
	// shared config files may override the requested region
	if s.region != "" {
		loaded.Region = s.region
	}
	s = s.resolve(loaded, logger)

	resolver, err := TopicResolverFactory(s.accountID, s.region)
	if err != nil {
		return nil, fmt.Errorf("create SNS topic resolver: %w", err)
	}

	pubCfg := sns.PublisherConfig{
		TopicResolver: resolver,
		AWSConfig:     loaded,
		Marshaler:     sns.DefaultMarshalerUnmarshaler{},
	}
	if s.endpoint != nil {
		pubCfg.OptFns = []func(*amazonsns.Options){
			amazonsns.WithEndpointResolverV2(sns.OverrideEndpointResolver{
				Endpoint: smithyendpoints.Endpoint{URI: *s.endpoint},
			}),
		}
	}

	publisher, err := PublisherFactory(pubCfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Created SNS publisher", watermill.LogFields{
		"account_id":      s.accountID,
		"region":          s.region,
		"custom_endpoint": s.endpoint != nil,
	})

	return pubsub.FromConfig(&topicPublisher{Publisher: publisher}, cfg, logger, transport.AWSCapabilities)
}

// topicPublisher maps dotted topic names onto valid SNS topic names.
type topicPublisher struct {
	message.Publisher
}

func (p *topicPublisher) Publish(topic string, messages ...*message.Message) error {
	return p.Publisher.Publish(SNSTopicName(topic), messages...)
}

// SNSTopicName replaces characters SNS does not accept in topic names.
func SNSTopicName(topic string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, topic)
}
