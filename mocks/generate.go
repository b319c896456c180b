package mocks

//go:generate mockgen -destination store.go -package mocks -mock_names ConfigStore=ConfigStore,FingerprintStore=FingerprintStore github.com/libdcgo/divesync/pkg/store ConfigStore,FingerprintStore
//go:generate mockgen -destination parser.go -package mocks -mock_names Parser=Parser github.com/libdcgo/divesync/pkg/parser Parser
//go:generate mockgen -destination device.go -package mocks -mock_names Protocol=Protocol github.com/libdcgo/divesync/pkg/device Protocol
