package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyHeadline = "server_errors.headline"
	KeyDefault  = "server_errors.default"
	keyPrefix   = "server_errors."
)

// Client-side conditions that have no device status code but still get a
// message of their own.
const (
	CodeTimeout       = "TIMEOUT"
	CodeMalformed     = "MALFORMED_PAYLOAD"
	CodeLengthOverrun = "LENGTH_OVERRUN"
	CodeInFlight      = "OPERATION_IN_FLIGHT"
)

type entry struct {
	key string
	msg string
}

var messages = map[language.Tag][]entry{
	language.English: {
		{KeyHeadline, "Server error"},
		{KeyDefault, "The device reported an unknown error."},
		{keyPrefix + "WSFS_NON_BINARY_DATA", "The device only accepts binary commands."},
		{keyPrefix + "WSFS_EMPTY_REQUEST", "The request was empty."},
		{keyPrefix + "WSFS_COMMAND_UNKNOWN", "The device does not know this command."},
		{keyPrefix + "WSFS_PARAM_MISSING", "A required parameter is missing."},
		{keyPrefix + "WSFS_TARGET_NOT_EXISTING", "The target does not exist."},
		{keyPrefix + "WSFS_NOT_A_DIR", "The target is not a directory."},
		{keyPrefix + "WSFS_IS_A_DIR", "The target is a directory."},
		{keyPrefix + "WSFS_COULD_NOT_DELETE_FILE", "The file could not be deleted."},
		{keyPrefix + "WSFS_COULD_NOT_DELETE_DIR", "The directory could not be deleted."},
		{keyPrefix + "WSFS_DIR_EXISTS", "The directory already exists."},
		{keyPrefix + "WSFS_FILE_EXISTS", "The file already exists."},
		{keyPrefix + "WSFS_COULD_NOT_CREATE_FILE", "The file could not be created."},
		{keyPrefix + "WSFS_COULD_NOT_CREATE_DIR", "The directory could not be created."},
		{keyPrefix + "RESOURCE_NOT_FOUND", "The requested resource does not exist."},
		{keyPrefix + "NON_NUM_ID", "The identifier is not a number."},
		{keyPrefix + "OUT_OF_RANGE_ID", "The identifier is out of range."},
		{keyPrefix + "INVALID_WEEKDAY", "The weekday is invalid."},
		{keyPrefix + CodeTimeout, "The device did not answer in time."},
		{keyPrefix + CodeMalformed, "The device sent a response that could not be read."},
		{keyPrefix + CodeLengthOverrun, "The device sent more data than announced."},
		{keyPrefix + CodeInFlight, "Another operation is still running."},
	},
	language.German: {
		{KeyHeadline, "Serverfehler"},
		{KeyDefault, "Das Gerät meldete einen unbekannten Fehler."},
		{keyPrefix + "WSFS_NON_BINARY_DATA", "Das Gerät akzeptiert nur binäre Befehle."},
		{keyPrefix + "WSFS_EMPTY_REQUEST", "Die Anfrage war leer."},
		{keyPrefix + "WSFS_COMMAND_UNKNOWN", "Das Gerät kennt diesen Befehl nicht."},
		{keyPrefix + "WSFS_PARAM_MISSING", "Ein benötigter Parameter fehlt."},
		{keyPrefix + "WSFS_TARGET_NOT_EXISTING", "Das Ziel existiert nicht."},
		{keyPrefix + "WSFS_NOT_A_DIR", "Das Ziel ist kein Verzeichnis."},
		{keyPrefix + "WSFS_IS_A_DIR", "Das Ziel ist ein Verzeichnis."},
		{keyPrefix + "WSFS_COULD_NOT_DELETE_FILE", "Die Datei konnte nicht gelöscht werden."},
		{keyPrefix + "WSFS_COULD_NOT_DELETE_DIR", "Das Verzeichnis konnte nicht gelöscht werden."},
		{keyPrefix + "WSFS_DIR_EXISTS", "Das Verzeichnis existiert bereits."},
		{keyPrefix + "WSFS_FILE_EXISTS", "Die Datei existiert bereits."},
		{keyPrefix + "WSFS_COULD_NOT_CREATE_FILE", "Die Datei konnte nicht erstellt werden."},
		{keyPrefix + "WSFS_COULD_NOT_CREATE_DIR", "Das Verzeichnis konnte nicht erstellt werden."},
		{keyPrefix + "RESOURCE_NOT_FOUND", "Die angeforderte Ressource existiert nicht."},
		{keyPrefix + "NON_NUM_ID", "Die Kennung ist keine Zahl."},
		{keyPrefix + "OUT_OF_RANGE_ID", "Die Kennung liegt außerhalb des gültigen Bereichs."},
		{keyPrefix + "INVALID_WEEKDAY", "Der Wochentag ist ungültig."},
		{keyPrefix + CodeTimeout, "Das Gerät hat nicht rechtzeitig geantwortet."},
		{keyPrefix + CodeMalformed, "Die Antwort des Geräts konnte nicht gelesen werden."},
		{keyPrefix + CodeLengthOverrun, "Das Gerät sendete mehr Daten als angekündigt."},
		{keyPrefix + CodeInFlight, "Ein anderer Vorgang läuft noch."},
	},
}

// Supported lists the languages with messages, default first.
var Supported = []language.Tag{language.English, language.German}

func newCatalog() (*catalog.Builder, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for _, m := range msgs {
			if err := b.SetString(tag, m.key, m.msg); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}
