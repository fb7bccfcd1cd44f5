package badgerstore

import (
	"fmt"

	"github.com/google/uuid"

	"roadwiki/app/internal/domain"
)

// Documents live under "<Collection>/<id>", secondary indexes under
// "<Collection>#<index>/...". The sequence key sits outside both so a wipe
// never rewinds page ids.
const (
	documentSep = "/"
	indexSep    = "#"

	usernameIndex = "username"
	emailIndex    = "email"
	versionIndex  = "version"

	pageIDSequenceKey = "seq/" + domain.CollectionPages
)

func documentPrefix(collection string) []byte {
	return []byte(collection + documentSep)
}

func indexPrefix(collection string) []byte {
	return []byte(collection + indexSep)
}

func userKey(id uuid.UUID) []byte {
	return []byte(domain.CollectionUsers + documentSep + id.String())
}

func usernameKey(username string) []byte {
	return []byte(domain.CollectionUsers + indexSep + usernameIndex + documentSep + username)
}

func emailKey(email string) []byte {
	return []byte(domain.CollectionUsers + indexSep + emailIndex + documentSep + email)
}

// pageKey pads the id so iteration follows numeric order.
func pageKey(id int) []byte {
	return []byte(fmt.Sprintf("%s%s%020d", domain.CollectionPages, documentSep, id))
}

func pageContentKey(id uuid.UUID) []byte {
	return []byte(domain.CollectionPageContents + documentSep + id.String())
}

func pageVersionPrefix(pageID int) []byte {
	return []byte(fmt.Sprintf("%s%s%s%s%020d%s", domain.CollectionPageContents, indexSep, versionIndex, documentSep, pageID, documentSep))
}

func pageVersionKey(pageID, version int) []byte {
	return append(pageVersionPrefix(pageID), []byte(fmt.Sprintf("%010d", version))...)
}

func siteConfigurationKey() []byte {
	return []byte(domain.CollectionSiteConfiguration + documentSep + domain.SiteConfigurationID.String())
}
