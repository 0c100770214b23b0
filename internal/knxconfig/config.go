// Package knxconfig loads and validates the YAML configuration document
// that wires a device's link, object model tables, persistence, telemetry
// sinks and diagnostics API together at startup.
package knxconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Link        LinkConfig        `yaml:"link"`
	Device      DeviceConfig      `yaml:"device"`
	Storage     StorageConfig     `yaml:"storage"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LinkConfig binds the link driver to a serial port and transceiver
// variant.
type LinkConfig struct {
	Port    string `yaml:"port"`
	Variant string `yaml:"variant"` // "tpuart" or "ncn5120"
	Baud    int    `yaml:"baud"`
}

// DeviceConfig describes the device's own identity and the static tables
// loaded at boot.
type DeviceConfig struct {
	// Address is the device's physical address in "area.line.device" form.
	Address string      `yaml:"address"`
	Info    InfoConfig  `yaml:"info"`
	Tables  TableConfig `yaml:"tables"`
}

// InfoConfig mirrors knxdevice.InfoTable in a YAML-friendly shape.
type InfoConfig struct {
	ProgrammingMode bool   `yaml:"programming_mode"`
	Serial          string `yaml:"serial"` // 6 bytes, hex, e.g. "001122334455"
	ManufacturerID  uint16 `yaml:"manufacturer_id"`
	HardwareType    string `yaml:"hardware_type"` // 6 bytes, hex
	OrderInfo       string `yaml:"order_info"`    // free text, truncated/padded to 10 bytes
	DeviceControl   uint8  `yaml:"device_control"`
}

// TableConfig holds the memory-mapped tables a downloader would write:
// communication objects, property objects, memory segments and the
// group-address association map.
type TableConfig struct {
	ComObjects   []ComObjectConfig   `yaml:"com_objects"`
	Properties   []PropertyObjectCfg `yaml:"properties"`
	Memory       []MemorySegmentCfg  `yaml:"memory"`
	Addresses    []string            `yaml:"addresses"` // group addresses, 1-based index
	Associations []AssociationConfig `yaml:"associations"`
	// ETSExport optionally points at an ETS group-address CSV export;
	// when set, it replaces Addresses/Associations as the source of the
	// association table.
	ETSExport string `yaml:"ets_export"`
	// AssocLimit bounds how many association rows Update will honor;
	// zero means "as many as supplied".
	AssocLimit int `yaml:"assoc_limit"`
}

// ComObjectConfig is one row of the communication-object table.
type ComObjectConfig struct {
	Type     string         `yaml:"type"` // e.g. "bit1", "byte4"
	Priority string         `yaml:"priority"`
	Access   AccessFlagsCfg `yaml:"access"`
}

// AccessFlagsCfg mirrors knxdevice.AccessFlags.
type AccessFlagsCfg struct {
	Enabled  bool `yaml:"enabled"`
	Read     bool `yaml:"read"`
	Write    bool `yaml:"write"`
	Transmit bool `yaml:"transmit"`
	Update   bool `yaml:"update"`
}

// PropertyObjectCfg is one property container.
type PropertyObjectCfg struct {
	Properties []PropertyConfig `yaml:"properties"`
}

// PropertyConfig is one row of a property object's property list.
type PropertyConfig struct {
	ID           uint8            `yaml:"id"`
	Type         string           `yaml:"type"` // e.g. "generic6", "unsigned_int"
	ElementCount int              `yaml:"element_count"`
	Flags        PropertyFlagsCfg `yaml:"flags"`
}

// PropertyFlagsCfg mirrors knxdevice.PropertyFlags.
type PropertyFlagsCfg struct {
	Writable bool `yaml:"writable"`
	Pointer  bool `yaml:"pointer"`
	Array    bool `yaml:"array"`
}

// MemorySegmentCfg is one row of the memory segment table.
type MemorySegmentCfg struct {
	StartAddr uint16         `yaml:"start_addr"`
	Size      int            `yaml:"size"`
	Kind      string         `yaml:"kind"` // "ram", "eeprom", "flash"
	Flags     MemoryFlagsCfg `yaml:"flags"`
}

// MemoryFlagsCfg mirrors knxdevice.MemoryFlags (Modified is runtime-only).
type MemoryFlagsCfg struct {
	Readable bool `yaml:"readable"`
	Writable bool `yaml:"writable"`
}

// AssociationConfig is one row of the association table: a 1-based index
// into Addresses and a 0-based index into ComObjects.
type AssociationConfig struct {
	AddressIndex   int `yaml:"address_index"`
	ComObjectIndex int `yaml:"com_object_index"`
}

// StorageConfig points at the sqlite database backing memory-segment
// snapshots and the device event log.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// MQTTConfig configures the optional MQTT telemetry sink.
type MQTTConfig struct {
	Enabled      bool             `yaml:"enabled"`
	Broker       MQTTBrokerConfig `yaml:"broker"`
	Username     string           `yaml:"username"`
	Password     string           `yaml:"password"`
	QoS          byte             `yaml:"qos"`
	TopicPrefix  string           `yaml:"topic_prefix"`  // default "knx"
	CommandTopic string           `yaml:"command_topic"` // default "knx/command"
}

// MQTTBrokerConfig addresses the broker to connect to.
type MQTTBrokerConfig struct {
	URL      string `yaml:"url"` // e.g. "tcp://localhost:1883"
	ClientID string `yaml:"client_id"`
}

// InfluxDBConfig configures the optional time-series telemetry sink.
type InfluxDBConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"` // default "comobject_value"
}

// DiagnosticsConfig configures the optional HTTP/WebSocket diagnostics
// API.
type DiagnosticsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"` // e.g. ":8081"
	JWTSecret string `yaml:"jwt_secret"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// LoggingConfig selects the structured logger's verbosity and output
// shape.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout" or "stderr"
}

// Load reads, parses and validates the YAML document at path, applying
// environment overrides for the secrets it would be unsafe to commit to
// disk.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("knxconfig: reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("knxconfig: parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("knxconfig: validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			Variant: "tpuart",
			Baud:    19200, //nolint:mnd // TP-UART fixed bus bit rate
		},
		MQTT: MQTTConfig{
			QoS:          1,
			TopicPrefix:  "knx",
			CommandTopic: "knx/command",
		},
		InfluxDB: InfluxDBConfig{
			Measurement: "comobject_value",
		},
		Diagnostics: DiagnosticsConfig{
			Addr: ":8081",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides lets secrets that should not be committed to disk be
// supplied out of band.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KNXDEVSTACK_JWT_SECRET"); v != "" {
		cfg.Diagnostics.JWTSecret = v
	}
	if v := os.Getenv("KNXDEVSTACK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("KNXDEVSTACK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the fields the rest of the stack cannot safely default
// around: a usable link port, a well-formed device address, and (when the
// optional subsystems are enabled) the configuration they each need.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Link.Port) == "" {
		errs = append(errs, "link.port is required")
	}
	if c.Link.Variant != "tpuart" && c.Link.Variant != "ncn5120" {
		errs = append(errs, `link.variant must be "tpuart" or "ncn5120"`)
	}

	if strings.TrimSpace(c.Device.Address) == "" {
		errs = append(errs, "device.address is required")
	}

	if strings.TrimSpace(c.Storage.SQLitePath) == "" {
		errs = append(errs, "storage.sqlite_path is required")
	} else if dir := filepath.Dir(c.Storage.SQLitePath); dir != "." {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Sprintf("storage.sqlite_path: directory %q does not exist", dir))
		}
	}

	if c.MQTT.Enabled && strings.TrimSpace(c.MQTT.Broker.URL) == "" {
		errs = append(errs, "mqtt.broker.url is required when mqtt.enabled is true")
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled {
		if strings.TrimSpace(c.InfluxDB.URL) == "" {
			errs = append(errs, "influxdb.url is required when influxdb.enabled is true")
		}
		if strings.TrimSpace(c.InfluxDB.Bucket) == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb.enabled is true")
		}
	}

	if c.Diagnostics.Enabled {
		const minSecretLength = 32
		if len(c.Diagnostics.JWTSecret) < minSecretLength {
			errs = append(errs, "diagnostics.jwt_secret must be at least 32 characters when diagnostics.enabled is true")
		}
		if c.Diagnostics.Username == "" || c.Diagnostics.Password == "" {
			errs = append(errs, "diagnostics.username and diagnostics.password are required when diagnostics.enabled is true")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
