package validators

import "go.mongodb.org/mongo-driver/bson"

var AuditValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"reservation_id",
			"resource_id",
			"to",
			"at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"reservation_id": bson.M{"bsonType": "string"},
			"resource_id":    bson.M{"bsonType": "string"},
			"actor_id":       bson.M{"bsonType": "string"},
			"from":           bson.M{"bsonType": "string"},
			"to":             bson.M{"bsonType": "string"},
			"reason":         bson.M{"bsonType": "string"},
			"at":             bson.M{"bsonType": "date"},
		},
	},
}
