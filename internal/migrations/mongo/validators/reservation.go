package validators

import "go.mongodb.org/mongo-driver/bson"

var integer = bson.A{"int", "long"}

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"resource_id",
			"requester_id",
			"range",
			"status",
			"version",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"requester_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"range": bson.M{
				"bsonType": "object",
				"required": []string{"start", "end"},
				"properties": bson.M{
					"start": bson.M{"bsonType": "date"},
					"end":   bson.M{"bsonType": "date"},
				},
			},

			"status": bson.M{
				"enum": []string{"pending", "confirmed", "cancelled", "expired", "rejected"},
			},

			"expires_at": bson.M{
				"bsonType": "date",
			},

			"version": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
