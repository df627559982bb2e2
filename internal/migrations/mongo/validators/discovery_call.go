package validators

import "go.mongodb.org/mongo-driver/bson"

var DiscoveryCallValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"name",
			"email",
			"message",
			"preferred_date",
			"requested_by",
			"requested_at",
			"status",
		},
		"additionalProperties": false,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 120,
			},

			"email": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 254,
			},

			"message": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 4000,
			},

			"preferred_date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"upi_reference": bson.M{
				"bsonType":  "string",
				"maxLength": 64,
			},

			"requested_by": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"requested_at": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"enum": []string{"pending_confirmation", "confirmed", "cancelled"},
			},
		},
	},
}
