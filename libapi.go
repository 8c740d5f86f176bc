package docrelay

import (
	runtimepkg "github.com/bluesky/docrelay/internal/runtime"
	"github.com/bluesky/docrelay/internal/runtime/catalog"
	configpkg "github.com/bluesky/docrelay/internal/runtime/config"
	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
	idspkg "github.com/bluesky/docrelay/internal/runtime/ids"
	jsoncodec "github.com/bluesky/docrelay/internal/runtime/jsoncodec"
	loggingpkg "github.com/bluesky/docrelay/internal/runtime/logging"
	metadatapkg "github.com/bluesky/docrelay/internal/runtime/metadata"
	"github.com/bluesky/docrelay/internal/runtime/pipeline"
	"github.com/bluesky/docrelay/internal/runtime/resolver"
	"github.com/bluesky/docrelay/transport"
)

type (
	Config              = configpkg.Config
	Endpoint            = configpkg.Endpoint
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	Relay               = runtimepkg.Relay
	StatusReport        = runtimepkg.StatusReport

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	RelayMetrics         = runtimepkg.RelayMetrics
	RelayMetricsSnapshot = runtimepkg.RelayMetricsSnapshot

	Document = document.Document
	Kind     = document.Kind
	Pair     = document.Pair
	Envelope = document.Envelope

	Stage           = pipeline.Stage
	StageFunc       = pipeline.StageFunc
	Emitter         = pipeline.Emitter
	Pipeline        = pipeline.Pipeline
	PipelineFactory = pipeline.Factory
	FactoryOptions  = pipeline.FactoryOptions
	RunRouter       = pipeline.RunRouter

	Resolver     = resolver.Resolver
	ResolverFunc = resolver.ResolverFunc
	Resolvers    = resolver.Registry
	Resource     = resolver.Resource

	Catalog    = catalog.Catalog
	CatalogRun = catalog.Run

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError
	ResolutionError       = errspkg.ResolutionError

	Transport             = transport.Transport
	TransportBuilder      = transport.Builder
	TransportConfig       = transport.Config
	TransportRegistry     = transport.Registry
	TransportCapabilities = transport.Capabilities
)

// Document kinds.
const (
	KindStart      = document.KindStart
	KindDescriptor = document.KindDescriptor
	KindResource   = document.KindResource
	KindDatum      = document.KindDatum
	KindDatumPage  = document.KindDatumPage
	KindEvent      = document.KindEvent
	KindEventPage  = document.KindEventPage
	KindStop       = document.KindStop
)

// Metadata keys stamped on relayed messages.
const (
	MetadataKeyDocumentName  = metadatapkg.KeyDocumentName
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyRunUID        = metadatapkg.KeyRunUID
)

var (
	NewService      = runtimepkg.NewService
	NewRelay        = runtimepkg.NewRelay
	NewRelayMetrics = runtimepkg.NewRelayMetrics

	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.LoadFile
	ParseAddress   = configpkg.ParseAddress
	ValidateConfig = configpkg.ValidateConfig

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	ParseKind      = document.ParseKind
	EncodeDocument = document.Encode
	DecodeDocument = document.Decode
	EncodeEnvelope = document.EncodeEnvelope
	DecodeEnvelope = document.DecodeEnvelope

	DefaultFactory = pipeline.DefaultFactory
	NewPipeline    = pipeline.NewPipeline
	NewRunRouter   = pipeline.NewRunRouter
	NewAccumulator = pipeline.NewAccumulator
	NewFiller      = pipeline.NewFiller
	NewSplicer     = pipeline.NewSplicer

	NewResolvers      = resolver.NewRegistry
	DiscoverResolvers = resolver.Discover

	NewMemoryCatalog = catalog.NewMemory
	NewDirCatalog    = catalog.NewDir
	WriteDirCatalog  = catalog.WriteDir
	DialKVCatalog    = catalog.DialKV

	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.Register
	BuildTransport           = transport.Build
	GetCapabilities          = transport.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired           = errspkg.ErrConfigRequired
	ErrLoggerRequired           = errspkg.ErrLoggerRequired
	ErrFactoryRequired          = errspkg.ErrFactoryRequired
	ErrUnrecognizedDocumentKind = errspkg.ErrUnrecognizedDocumentKind
	ErrMissingField             = errspkg.ErrMissingField
	ErrNoActivePipeline         = errspkg.ErrNoActivePipeline
	ErrDuplicateRun             = errspkg.ErrDuplicateRun
	ErrResolutionLookup         = errspkg.ErrResolutionLookup
	ErrResolverNotFound         = errspkg.ErrResolverNotFound
	ErrExternalResolution       = errspkg.ErrExternalResolution
	ErrCatalogLookup            = errspkg.ErrCatalogLookup

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewTextServiceLogger = loggingpkg.NewTextServiceLogger
	NewWatermillAdapter  = loggingpkg.NewWatermillAdapter

	CreateULID = idspkg.CreateULID
)

