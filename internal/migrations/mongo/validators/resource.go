package validators

import "go.mongodb.org/mongo-driver/bson"

var ResourceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"capacity",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"kind": bson.M{
				"bsonType":  "string",
				"maxLength": 50,
			},

			"capacity": bson.M{
				"bsonType": integer,
				"minimum":  1,
				"maximum":  1000,
			},

			"seats": bson.M{
				"bsonType": integer,
				"minimum":  1,
				"maximum":  10000,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
