package catalog

import (
	"github.com/hanpama/portalgraph/internal/args"
	"github.com/hanpama/portalgraph/internal/entity"
)

var (
	groupID     = args.NewSpec("groupId", args.Int64)
	userID      = args.NewSpec("userId", args.Int64)
	className   = args.NewSpec("className", args.String)
	classPK     = args.NewSpec("classPK", args.Int64)
	titleMap    = args.NewSpec("titleMap", args.LocaleMap)
	descMap     = args.NewSpec("descriptionMap", args.LocaleMap)
	createDate  = args.NewSpec("createDate", args.Date)
	modifyDate  = args.NewSpec("modifiedDate", args.Date)
	auditFields = []args.Spec{createDate, modifyDate}
)

// Portal returns the catalog of portal entities.
func Portal() *Catalog {
	return New(
		Entity{
			Definition: def("Tag", "tagId",
				groupID, userID,
				args.NewSpec("name", args.String),
			),
			Plural:      "tags",
			Description: "A free-form keyword attached to assets.",
			ReadOnly:    append([]args.Spec{args.NewSpec("assetCount", args.Int64)}, auditFields...),
		},
		Entity{
			Definition: def("Vocabulary", "vocabularyId",
				groupID, userID, titleMap, descMap,
				args.NewSpec("settings", args.String),
			),
			Plural:      "vocabularies",
			Description: "A named set of categories.",
			ReadOnly:    auditFields,
		},
		Entity{
			Definition: def("Category", "categoryId",
				groupID, userID,
				args.NewSpec("parentCategoryId", args.Int64),
				args.NewSpec("vocabularyId", args.Int64),
				titleMap, descMap,
			),
			Plural:      "categories",
			Description: "A node of a vocabulary's category tree.",
			ReadOnly:    auditFields,
			References: []Reference{
				{Field: "vocabulary", Target: "Vocabulary", Key: "vocabularyId"},
				{Field: "parentCategory", Target: "Category", Key: "parentCategoryId"},
			},
		},
		Entity{
			Definition: def("Folder", "folderId",
				groupID, userID,
				args.NewSpec("repositoryId", args.Int64),
				args.NewSpec("parentFolderId", args.Int64),
				args.NewSpec("name", args.String),
				args.NewSpec("description", args.String),
				args.NewSpec("mountPoint", args.Bool),
				args.NewSpec("hidden", args.Bool),
			),
			Plural:      "folders",
			Description: "A document library folder.",
			ReadOnly:    auditFields,
			References: []Reference{
				{Field: "parentFolder", Target: "Folder", Key: "parentFolderId"},
			},
		},
		Entity{
			Definition: def("FileEntry", "fileEntryId",
				groupID, userID,
				args.NewSpec("repositoryId", args.Int64),
				args.NewSpec("folderId", args.Int64),
				args.NewSpec("sourceFileName", args.String),
				args.NewSpec("mimeType", args.String),
				args.NewSpec("title", args.String),
				args.NewSpec("description", args.String),
				args.NewSpec("changeLog", args.String),
				args.NewSpec("size", args.Int64),
				args.NewSpec("displayDate", args.Date),
				args.NewSpec("tagIds", args.Int64Array),
				args.NewSpec("categoryIds", args.Int64Array),
			),
			Plural:      "fileEntries",
			Description: "A document stored in a folder.",
			ReadOnly: append([]args.Spec{
				args.NewSpec("version", args.String),
				args.NewSpec("readCount", args.Int64),
			}, auditFields...),
			References: []Reference{
				{Field: "folder", Target: "Folder", Key: "folderId"},
				{Field: "tags", Target: "Tag", Key: "tagIds", Many: true},
				{Field: "categories", Target: "Category", Key: "categoryIds", Many: true},
			},
		},
		Entity{
			Definition: def("Role", "roleId",
				userID, className, classPK,
				args.NewSpec("name", args.String),
				titleMap, descMap,
				args.NewSpec("type", args.Int64).WithDefault(int64(1)),
				args.NewSpec("subtype", args.String),
			),
			Plural:      "roles",
			Description: "A set of permissions granted to users.",
			ReadOnly:    auditFields,
		},
		Entity{
			Definition: def("Address", "addressId",
				userID, className, classPK,
				args.NewSpec("street1", args.String),
				args.NewSpec("street2", args.String),
				args.NewSpec("street3", args.String),
				args.NewSpec("city", args.String),
				args.NewSpec("zip", args.String),
				args.NewSpec("regionId", args.Int64),
				args.NewSpec("countryId", args.Int64),
				args.NewSpec("typeId", args.Int64),
				args.NewSpec("mailing", args.Bool),
				args.NewSpec("primary", args.Bool),
			),
			Plural:      "addresses",
			Description: "A postal address owned by a user or organization.",
			ReadOnly:    auditFields,
		},
		Entity{
			Definition: def("OAuthGrant", "oauthGrantId",
				userID,
				args.NewSpec("oauthApplicationId", args.Int64),
				args.NewSpec("scopes", args.String),
				args.NewSpec("accessTokenExpirationDate", args.Date),
				args.NewSpec("refreshTokenExpirationDate", args.Date),
				args.NewSpec("remoteIPInfo", args.String),
			),
			Single:      "oauthGrant",
			Plural:      "oauthGrants",
			Description: "An authorization granted by a user to an OAuth application.",
			ReadOnly:    []args.Spec{createDate},
		},
		Entity{
			Definition: def("Comment", "commentId",
				groupID, userID, className, classPK,
				args.NewSpec("parentCommentId", args.Int64),
				args.NewSpec("message", args.Object).WithFields(
					args.NewSpec("subject", args.String),
					args.NewSpec("body", args.String),
					args.NewSpec("format", args.String).WithDefault("html"),
				).WithDescription("Subject and body of the comment."),
			),
			Plural:      "comments",
			Description: "A discussion message attached to an asset.",
			ReadOnly:    auditFields,
			References: []Reference{
				{Field: "parentComment", Target: "Comment", Key: "parentCommentId"},
			},
		},
	)
}

func def(name, idArg string, fields ...args.Spec) entity.Definition {
	return entity.Definition{Name: name, IDArg: idArg, Fields: fields}
}
