package nakama

// MatchName is the authoritative match handler name registered with Nakama.
const MatchName = "clinic_encounter"

// Op codes of match data messages.
const (
	OpState     int64 = 1
	OpPlayCard  int64 = 2
	OpEndTurn   int64 = 3
	OpCounter   int64 = 4
	OpRejection int64 = 5
	OpError     int64 = 6
)

// Runtime environment keys read at module load.
const (
	envCatalogPath = "clinic_catalog_path"
	envConfigPath  = "clinic_config_path"
)

const tickRate = 5
