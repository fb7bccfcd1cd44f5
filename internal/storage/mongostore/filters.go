package mongostore

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func idFilter(id any) bson.D {
	return bson.D{{Key: fieldID, Value: id}}
}

// withActivated appends the optional activated predicate.
func withActivated(filter bson.D, activated *bool) bson.D {
	if activated == nil {
		return filter
	}
	return append(filter, bson.E{Key: fieldIsActivated, Value: *activated})
}

func userByIDFilter(id uuid.UUID, activated *bool) bson.D {
	return withActivated(idFilter(id.String()), activated)
}

func userWithRoleFilter(id uuid.UUID, roleField string) bson.D {
	return bson.D{{Key: fieldID, Value: id.String()}, {Key: roleField, Value: true}}
}

func usernameFilter(username string) bson.D {
	return bson.D{{Key: fieldUsername, Value: username}}
}

func emailFilter(email string, activated *bool) bson.D {
	return withActivated(bson.D{{Key: fieldEmail, Value: email}}, activated)
}

func usernameOrEmailFilter(username, email string) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: fieldUsername, Value: username}},
		bson.D{{Key: fieldEmail, Value: email}},
	}}}
}

// activationKeyFilter only matches users that are not yet activated.
func activationKeyFilter(key string) bson.D {
	return bson.D{{Key: fieldActivationKey, Value: key}, {Key: fieldIsActivated, Value: false}}
}

func passwordResetKeyFilter(key string) bson.D {
	return bson.D{{Key: fieldPasswordResetKey, Value: key}}
}

func flagFilter(field string) bson.D {
	return bson.D{{Key: field, Value: true}}
}

// titleFilter matches the whole title ignoring case.
func titleFilter(title string) bson.D {
	pattern := "^" + regexp.QuoteMeta(title) + "$"
	return bson.D{{Key: fieldTitle, Value: primitive.Regex{Pattern: pattern, Options: "i"}}}
}

func fieldEquals(field string, value any) bson.D {
	return bson.D{{Key: field, Value: value}}
}

func tagFilter(tag string) bson.D {
	return bson.D{{Key: fieldTags, Value: strings.ToLower(strings.TrimSpace(tag))}}
}

func contentVersionFilter(pageID, version int) bson.D {
	return bson.D{{Key: fieldPageID, Value: pageID}, {Key: fieldVersionNumber, Value: version}}
}

func incrementSequence() bson.D {
	return bson.D{{Key: "$inc", Value: bson.D{{Key: fieldSequence, Value: 1}}}}
}

// raiseSequence lifts the counter to at least seq and never lowers it.
func raiseSequence(seq int) bson.D {
	return bson.D{{Key: "$max", Value: bson.D{{Key: fieldSequence, Value: seq}}}}
}
