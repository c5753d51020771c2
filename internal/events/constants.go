package events

// UnknownLabel is the display label for dimension values the event does not
// carry (privacy mode, direct traffic, unparseable clients).
const UnknownLabel = "Unknown"

// DirectLabel is the attribution bucket for sessions with no referrer and no
// UTM signal on their first page view.
const DirectLabel = "Direct"
